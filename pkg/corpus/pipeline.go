package corpus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CTAG07/Oneliner/pkg/markov"
)

// Pipeline turns a raw corpus into a markov.Chain: read rows, normalize them
// concurrently, then tokenize and build sequentially in row order.
type Pipeline struct {
	workers   int
	header    bool
	tokenizer markov.Tokenizer
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers sets the number of normalization workers.
// Default: DefaultWorkers
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithHeader sets whether the first corpus row is a header to be skipped.
// Default: false
func WithHeader(has bool) PipelineOption {
	return func(p *Pipeline) {
		p.header = has
	}
}

// WithTokenizer sets the tokenizer used to split normalized lines.
// Default: markov.NewDefaultTokenizer()
func WithTokenizer(t markov.Tokenizer) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.tokenizer = t
		}
	}
}

// NewPipeline creates a Pipeline with default settings, which can be
// overridden by providing one or more PipelineOption functions.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		workers:   DefaultWorkers,
		tokenizer: markov.NewDefaultTokenizer(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetLogger sets the logger for the Pipeline. By default, all logs are discarded.
func (p *Pipeline) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Build reads the whole corpus from r and returns the chain built from it.
func (p *Pipeline) Build(ctx context.Context, r io.Reader) (*markov.Chain, error) {
	now := time.Now()
	var rowOpts []RowOption
	if p.header {
		rowOpts = append(rowOpts, WithHeaderRow())
	}
	lines, err := ReadRows(r, p.logger, rowOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	p.logger.InfoContext(ctx, "Corpus read",
		slog.Int("rows", len(lines)),
		slog.Duration("elapsed", time.Since(now)),
	)

	return p.BuildLines(ctx, lines)
}

// BuildLines normalizes raw lines in place and builds a chain from them. On a
// normalization error lines are left in an unspecified state and no chain is
// returned.
func (p *Pipeline) BuildLines(ctx context.Context, lines []string) (*markov.Chain, error) {
	now := time.Now()
	if err := Normalize(ctx, lines, p.workers); err != nil {
		return nil, fmt.Errorf("failed to normalize corpus: %w", err)
	}
	p.logger.InfoContext(ctx, "Corpus cleaned",
		slog.Int("workers", p.workers),
		slog.Duration("elapsed", time.Since(now)),
	)

	now = time.Now()
	builder := markov.NewBuilder()
	var dropped int
	for _, line := range lines {
		tokens := p.tokenizer.Tokenize(line)
		if len(tokens) == 0 {
			dropped++
			continue
		}
		if err := builder.Add(tokens); err != nil {
			return nil, fmt.Errorf("failed to build chain: %w", err)
		}
	}
	chain := builder.Chain()

	stats := chain.Stats()
	p.logger.InfoContext(ctx, "Chain built",
		slog.Int64("lines_processed", builder.Lines()),
		slog.Int("lines_dropped", dropped),
		slog.Int("tokens", stats.Tokens),
		slog.Int("links", stats.Links),
		slog.Duration("elapsed", time.Since(now)),
	)
	return chain, nil
}
