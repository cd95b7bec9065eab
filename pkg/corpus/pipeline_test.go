package corpus

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/Oneliner/pkg/markov"
)

const sampleCorpus = `1;2020-01-01;alice;x;Hello, world!!
2;2020-01-02;bob;x;Visit http://example.com now
3;2020-01-03;carol;x;Hello again.
short;row
4;2020-01-04;dave;x;### not a oneliner
`

func TestPipelineBuild(t *testing.T) {
	p := NewPipeline(WithWorkers(2))

	chain, err := p.Build(context.Background(), strings.NewReader(sampleCorpus))
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", ",", "world", "!!", "again", "."}, chain.Tokens())
	assert.Equal(t, []int{0}, chain.Starts())
	assert.Equal(t, []int{3, 5}, chain.Ends())
	assert.Equal(t, markov.ChainStats{
		Tokens:         6,
		Links:          5,
		TotalFrequency: 5,
		StartingTokens: 1,
		EndingTokens:   2,
	}, chain.Stats())
	assert.Equal(t, map[int]int{1: 1, 4: 1}, chain.Transitions(0))
}

func TestPipelineHeader(t *testing.T) {
	input := "id;date;author;flags;text\n1;2020-01-01;alice;x;Hello, world!!\n"

	chain, err := NewPipeline(WithHeader(true)).Build(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", ",", "world", "!!"}, chain.Tokens())

	chain, err = NewPipeline().Build(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, chain.Starts())
}

func TestPipelineWorkerCountDoesNotChangeChain(t *testing.T) {
	var snapshots [][]byte
	for _, workers := range []int{1, 3, 16} {
		lines := testLines(3000)
		chain, err := NewPipeline(WithWorkers(workers)).BuildLines(context.Background(), lines)
		require.NoError(t, err)

		data, err := chain.MarshalBinary()
		require.NoError(t, err)
		snapshots = append(snapshots, data)
	}

	for i := 1; i < len(snapshots); i++ {
		assert.Equal(t, snapshots[0], snapshots[i], "chain built with a different worker count differs")
	}
}

func TestPipelineCustomTokenizer(t *testing.T) {
	tokenizer := markov.NewDefaultTokenizer(markov.WithSeparator("_"))
	p := NewPipeline(WithTokenizer(tokenizer), WithWorkers(1))

	chain, err := p.BuildLines(context.Background(), []string{"one two"})
	require.NoError(t, err)

	output, err := markov.NewGenerator(chain, tokenizer).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "one_two", output)
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline().BuildLines(ctx, testLines(10))
	assert.ErrorIs(t, err, context.Canceled)
}
