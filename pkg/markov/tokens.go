package markov

import (
	"regexp"
	"strings"
)

// Tokenizer is an interface that defines the contract for splitting a cleaned
// line into tokens and for joining generated tokens back into text. This
// allows the chain and generator to be independent of the specific
// tokenization strategy.
type Tokenizer interface {
	// Tokenize splits a single line into an ordered, possibly empty, list of
	// tokens.
	Tokenize(line string) []string
	// Separator returns the string that should be inserted before next when
	// it follows prev in generated output.
	Separator(prev, next string) string
}

// DefaultTokenizer is the default implementation of the Tokenizer interface.
// It splits on runs of whitespace and glues punctuation clusters to the
// preceding token when generating.
// Its behavior can be customized with functional options.
type DefaultTokenizer struct {
	separator         string
	separatorExcRegex *regexp.Regexp
}

// Option Is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithSeparator Sets the string used for joining tokens during generation.
// Default: " "
func WithSeparator(sep string) Option {
	return func(t *DefaultTokenizer) {
		t.separator = sep
	}
}

// WithSeparatorExcRegex sets the regex string used to decide whether a token
// is written without a separator before it.
// Default: `^[;:,.!?]+$`
func WithSeparatorExcRegex(splitExcRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.separatorExcRegex = regexp.MustCompile(splitExcRegex)
	}
}

// NewDefaultTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{
		separator: " ",
		// Pure punctuation clusters are attached directly to the previous token.
		separatorExcRegex: regexp.MustCompile(`^[;:,.!?]+$`),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Tokenize splits line on contiguous whitespace.
func (t *DefaultTokenizer) Tokenize(line string) []string {
	return strings.Fields(line)
}

// Separator Returns the configured separator string, or nothing if next is a
// punctuation cluster.
func (t *DefaultTokenizer) Separator(_, next string) string {
	if t.separatorExcRegex.MatchString(next) {
		return ""
	}
	return t.separator
}
