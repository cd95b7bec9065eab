package markov

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGenerateEmptyChain(t *testing.T) {
	c, err := Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := Generate(c); !errors.Is(err, ErrEmptyChain) {
		t.Errorf("Generate() error = %v, want %v", err, ErrEmptyChain)
	}
	if _, err := NewGenerator(c, nil).GenerateStream(context.Background()); !errors.Is(err, ErrEmptyChain) {
		t.Errorf("GenerateStream() error = %v, want %v", err, ErrEmptyChain)
	}
}

func TestGenerate(t *testing.T) {
	testCases := []struct {
		name     string
		lines    []string
		opts     []GenerateOption
		expected []string
	}{
		{
			name:     "Single token chain",
			lines:    []string{"hello"},
			expected: []string{"hello"},
		},
		{
			name:     "Punctuation is glued to the previous token",
			lines:    []string{"hello , world !!"},
			expected: []string{"hello, world!!"},
		},
		{
			name:     "Stops at max length before the first step",
			lines:    []string{"a b c", "b c a"},
			opts:     []GenerateOption{WithMaxLength(1)},
			expected: []string{"a", "b"},
		},
		{
			name:     "Token crossing the bound is kept whole",
			lines:    []string{"ab cdefgh"},
			opts:     []GenerateOption{WithMaxLength(3)},
			expected: []string{"ab cdefgh"},
		},
		{
			name:     "Cycle is cut by max length",
			lines:    []string{"a b", "b a"},
			opts:     []GenerateOption{WithMaxLength(10)},
			expected: []string{"a b a b a b", "b a b a b a"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := buildChain(t, tc.lines...)
			for range 20 {
				output, err := Generate(c, tc.opts...)
				if err != nil {
					t.Fatalf("Generate() error = %v", err)
				}
				found := false
				for _, exp := range tc.expected {
					if output == exp {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("Generate() got = %q, want one of %q", output, tc.expected)
				}
			}
		})
	}
}

func TestGenerateDefaultMaxLength(t *testing.T) {
	c := buildChain(t, "loop again", "again loop")

	output, err := Generate(c)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(output) < DefaultMaxLength {
		t.Errorf("len(Generate()) = %d, want at least %d", len(output), DefaultMaxLength)
	}
	if len(output) >= DefaultMaxLength+len(" again") {
		t.Errorf("len(Generate()) = %d, overshoots %d by more than one token", len(output), DefaultMaxLength)
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	c := buildChain(t, "a b c", "b c a")
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}

	output, err := Generate(c, WithMaxLength(40), WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	// Every transition in this chain is forced, so the text is a rotation of "a b c".
	if !strings.HasPrefix("a b c a b c a b c a b c a b c a b c a b c", output) &&
		!strings.HasPrefix("b c a b c a b c a b c a b c a b c a b c a", output) {
		t.Errorf("Generate() got = %q, not a walk of the chain", output)
	}
}

func TestGenerateWeightedSampling(t *testing.T) {
	c := buildChain(t, "x y", "x y", "x y", "x z")
	g := NewGenerator(c, nil)
	rnd := rand.New(rand.NewPCG(42, 1024))

	const draws = 10000
	counts := make(map[string]int)
	for range draws {
		output, err := g.Generate(context.Background(), WithRand(rnd))
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		counts[output]++
	}

	if counts["x y"]+counts["x z"] != draws {
		t.Fatalf("unexpected outputs: %v", counts)
	}
	ratio := float64(counts["x y"]) / draws
	if math.Abs(ratio-0.75) > 0.03 {
		t.Errorf("share of \"x y\" = %.3f, want 0.75 +/- 0.03 (counts %v)", ratio, counts)
	}
}

func TestGenerateSeededIsReproducible(t *testing.T) {
	c, err := Build(benchCorpus(200))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g := NewGenerator(c, nil)

	run := func() []string {
		rnd := rand.New(rand.NewPCG(7, 7))
		outputs := make([]string, 0, 20)
		for range 20 {
			output, err := g.Generate(context.Background(), WithRand(rnd), WithMaxLength(80))
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			outputs = append(outputs, output)
		}
		return outputs
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("seeded runs differ (-first +second):\n%s", diff)
	}
}

func TestGenerateTemperatureAndTopK(t *testing.T) {
	c := buildChain(t, "x y", "x y", "x y", "x z")

	testCases := []struct {
		name string
		opts []GenerateOption
	}{
		{name: "Zero temperature picks the most frequent token", opts: []GenerateOption{WithTemperature(0)}},
		{name: "Top-1 keeps only the most frequent token", opts: []GenerateOption{WithTopK(1), WithTemperature(1.5)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for range 50 {
				output, err := Generate(c, tc.opts...)
				if err != nil {
					t.Fatalf("Generate() error = %v", err)
				}
				if output != "x y" {
					t.Fatalf("Generate() got = %q, want %q", output, "x y")
				}
			}
		})
	}
}

func TestGenerateConcurrent(t *testing.T) {
	c, err := Build(benchCorpus(200))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g := NewGenerator(c, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := g.Generate(context.Background(), WithMaxLength(60)); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Generate() error = %v", err)
	}
}

func TestGenerateStream(t *testing.T) {
	c := buildChain(t, "hello , world !!")
	g := NewGenerator(c, nil)

	stream, err := g.GenerateStream(context.Background())
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	var fragments []string
	for fragment := range stream {
		fragments = append(fragments, fragment)
	}

	if diff := cmp.Diff([]string{"hello", ",", " world", "!!"}, fragments); diff != "" {
		t.Errorf("GenerateStream() fragments mismatch (-want +got):\n%s", diff)
	}
	if got := strings.Join(fragments, ""); got != "hello, world!!" {
		t.Errorf("joined stream = %q, want %q", got, "hello, world!!")
	}
}

func TestGenerateStreamCancelled(t *testing.T) {
	c := buildChain(t, "a b", "b a")
	g := NewGenerator(c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := g.GenerateStream(ctx, WithMaxLength(math.MaxInt))
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	cancel()

	// The stream must close on its own even though the walk never ends.
	for range stream {
	}
}

func TestGenerateStreamAbandonedReaderCancels(t *testing.T) {
	c := buildChain(t, "a b", "b a")
	g := NewGenerator(c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := g.GenerateStream(ctx, WithMaxLength(math.MaxInt))
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}

	for range 3 {
		if _, ok := <-stream; !ok {
			t.Fatal("stream closed before the reader stopped")
		}
	}

	// A reader that stops early releases the generator by cancelling.
	cancel()
	for range stream {
	}
}

func TestGeneratorCustomTokenizer(t *testing.T) {
	c := buildChain(t, "a b c")
	g := NewGenerator(c, NewDefaultTokenizer(WithSeparator("_")))

	output, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if output != "a_b_c" {
		t.Errorf("Generate() got = %q, want %q", output, "a_b_c")
	}
	if g.Chain() != c {
		t.Error("Chain() did not return the generator's chain")
	}
}

func BenchmarkGenerate(b *testing.B) {
	c, err := Build(benchCorpus(10000))
	if err != nil {
		b.Fatalf("Build() error = %v", err)
	}
	g := NewGenerator(c, nil)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := g.Generate(ctx); err != nil {
			b.Fatalf("Generate() error = %v", err)
		}
	}
}
