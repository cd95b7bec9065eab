package markov

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
)

// DefaultMaxLength is the output length, in bytes, at which generation stops.
const DefaultMaxLength = 330

// Rand is the source of randomness used during generation. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// globalRand draws from the process-wide math/rand/v2 source, which is safe
// for concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	maxLength   int
	rnd         Rand
	temperature float64
	topK        int
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in generation functions like Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithMaxLength sets the output length, in bytes, after which no further
// tokens are appended. The token that crosses the bound is kept whole.
func WithMaxLength(n int) GenerateOption {
	return func(o *generateOptions) { o.maxLength = n }
}

// WithRand sets the random source. A *rand.Rand is not safe for concurrent
// use, so a source passed here must not be shared between concurrent calls.
func WithRand(r Rand) GenerateOption {
	return func(o *generateOptions) {
		if r != nil {
			o.rnd = r
		}
	}
}

// WithTemperature adjusts the randomness of the token selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 increase randomness (making less frequent tokens more likely).
// Values < 1.0 decrease randomness (making more frequent tokens even more likely).
// A value of 0 or less results in deterministic selection (always choosing the most frequent token).
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts the token selection pool to the top `k` most frequent tokens
// at each step. A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

func newGenerateOptions(opts []GenerateOption) *generateOptions {
	options := &generateOptions{
		maxLength:   DefaultMaxLength,
		rnd:         globalRand{},
		temperature: 1.0,
		topK:        0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Generator walks a Chain to produce text. It only reads the chain, so a
// single Generator may be used from many goroutines at once.
type Generator struct {
	chain     *Chain
	tokenizer Tokenizer
	logger    *slog.Logger
}

// NewGenerator returns a Generator over c that joins tokens with tokenizer.
// A nil tokenizer selects the DefaultTokenizer.
func NewGenerator(c *Chain, tokenizer Tokenizer) *Generator {
	if tokenizer == nil {
		tokenizer = NewDefaultTokenizer()
	}
	return &Generator{
		chain:     c,
		tokenizer: tokenizer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Generator. By default, all logs are discarded.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Chain returns the chain the Generator walks.
func (g *Generator) Chain() *Chain {
	return g.chain
}

// Generate is a convenience wrapper that walks c with the DefaultTokenizer.
func Generate(c *Chain, opts ...GenerateOption) (string, error) {
	return NewGenerator(c, nil).Generate(context.Background(), opts...)
}

// Generate picks a random start token and follows weighted transitions until
// the output reaches the configured length or the current token has no
// successors. It returns ErrEmptyChain if the chain has no start tokens.
func (g *Generator) Generate(ctx context.Context, opts ...GenerateOption) (string, error) {
	if len(g.chain.starts) == 0 {
		return "", ErrEmptyChain
	}
	options := newGenerateOptions(opts)

	var builder strings.Builder
	g.walk(ctx, options, func(fragment string) bool {
		builder.WriteString(fragment)
		return true
	})
	return builder.String(), nil
}

// GenerateStream performs the same walk as Generate but delivers each appended
// fragment (separator included) on the returned channel. The channel is closed
// once generation completes or ctx is cancelled. The channel is unbuffered:
// callers must either drain it or cancel ctx, otherwise the generating
// goroutine stays blocked on its next send.
func (g *Generator) GenerateStream(ctx context.Context, opts ...GenerateOption) (<-chan string, error) {
	if len(g.chain.starts) == 0 {
		return nil, ErrEmptyChain
	}
	options := newGenerateOptions(opts)

	fragments := make(chan string)
	go func() {
		defer close(fragments)
		g.walk(ctx, options, func(fragment string) bool {
			select {
			case <-ctx.Done():
				g.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return false
			case fragments <- fragment:
				return true
			}
		})
	}()
	return fragments, nil
}

// walk contains the main generation loop. emit receives every fragment in
// order and may return false to stop early.
func (g *Generator) walk(ctx context.Context, options *generateOptions, emit func(string) bool) {
	c := g.chain

	current := c.starts[options.rnd.IntN(len(c.starts))]
	lastWord := c.tokens[current]
	if !emit(lastWord) {
		return
	}
	length := len(lastWord)
	steps := 1

	for length < options.maxLength {
		choices := c.next[current]
		if len(choices) == 0 { // Dead end in chain
			g.logger.DebugContext(ctx, "Generation terminated due to dead-end",
				slog.String("last_token", lastWord),
				slog.Int("steps", steps),
				slog.Int("generated_length", length),
			)
			return
		}

		var totalFreq int
		for _, choice := range choices {
			totalFreq += choice.Freq
		}
		current = chooseNextToken(choices, totalFreq, options)
		text := c.tokens[current]

		fragment := g.tokenizer.Separator(lastWord, text) + text
		if !emit(fragment) {
			return
		}
		lastWord = text
		length += len(fragment)
		steps++
	}

	g.logger.DebugContext(ctx, "Generation terminated by reaching maxLength",
		slog.Int("max_length", options.maxLength),
		slog.Int("steps", steps),
		slog.Int("generated_length", length),
	)
}

// chooseNextToken abstracts the token selection logic from the generation loop.
// choices must be non-empty and totalFreq must be their frequency sum.
func chooseNextToken(choices []ChainToken, totalFreq int, options *generateOptions) int {
	var nextToken int

	// topK filtering
	if options.topK > 0 && options.topK < len(choices) {
		choices = slices.Clone(choices)
		slices.SortStableFunc(choices, func(a, b ChainToken) int {
			return b.Freq - a.Freq
		})
		choices = choices[:options.topK]
		totalFreq = 0
		for _, choice := range choices {
			totalFreq += choice.Freq
		}
	}

	// temperature selection
	if options.temperature <= 0 { // Deterministic
		maxFreq := -1
		for _, choice := range choices {
			if choice.Freq > maxFreq {
				maxFreq = choice.Freq
				nextToken = choice.Id
			}
		}
	} else if options.temperature == 1.0 { // Standard weighted random
		randChoice := options.rnd.IntN(totalFreq)
		for _, choice := range choices {
			randChoice -= choice.Freq
			if randChoice < 0 {
				nextToken = choice.Id
				break
			}
		}
	} else { // Temperature-based sampling
		logProbabilities := make([]float64, len(choices))
		epsilon := math.Inf(-1)
		for i, choice := range choices {
			lp := math.Log(float64(choice.Freq)) / options.temperature
			logProbabilities[i] = lp
			if lp > epsilon {
				epsilon = lp
			}
		}
		var totalWeight float64
		weights := make([]float64, len(choices))
		for i, lp := range logProbabilities {
			w := math.Exp(lp - epsilon)
			weights[i] = w
			totalWeight += w
		}
		nextToken = choices[len(choices)-1].Id
		randChoice := options.rnd.Float64() * totalWeight
		for i, choice := range choices {
			randChoice -= weights[i]
			if randChoice < 0 {
				nextToken = choice.Id
				break
			}
		}
	}
	return nextToken
}
