package markov

import (
	"errors"
	"slices"
)

var (
	// ErrEmptyChain is returned by the generation functions when the chain has
	// no start tokens to begin a walk from.
	ErrEmptyChain = errors.New("markov: chain has no start tokens")
	// ErrBuild signals an internal inconsistency while building a chain. It
	// should never be seen in practice.
	ErrBuild = errors.New("markov: inconsistent chain state")
)

// ChainToken represents a potential next token in a Markov chain, including its
// vocabulary index and the number of times it followed the source token.
type ChainToken struct {
	Id   int
	Freq int
}

// Chain is an immutable word-transition model. Token indices are contiguous
// from 0 to Len()-1 and are assigned in first-seen order.
type Chain struct {
	tokens []string
	ids    map[string]int
	// next[i] holds the successors of token i sorted by Id. A token without
	// successors has an empty, non-nil entry.
	next   [][]ChainToken
	starts []int
	ends   []int
}

func newChain() *Chain {
	return &Chain{ids: make(map[string]int)}
}

// Len returns the vocabulary size.
func (c *Chain) Len() int {
	return len(c.tokens)
}

// Token returns the text of the token at index id.
func (c *Chain) Token(id int) (string, bool) {
	if id < 0 || id >= len(c.tokens) {
		return "", false
	}
	return c.tokens[id], true
}

// Index looks up the vocabulary index of a token.
func (c *Chain) Index(token string) (int, bool) {
	id, ok := c.ids[token]
	return id, ok
}

// Tokens returns a copy of the vocabulary in index order.
func (c *Chain) Tokens() []string {
	return slices.Clone(c.tokens)
}

// Starts returns the indices of tokens that opened at least one line, in the
// order they were first recorded.
func (c *Chain) Starts() []int {
	return slices.Clone(c.starts)
}

// Ends returns the indices of tokens that closed at least one line, in the
// order they were first recorded.
func (c *Chain) Ends() []int {
	return slices.Clone(c.ends)
}

// Next returns the successors of token id sorted by index, along with the sum
// of their frequencies. An unknown id or a token with no successors yields a
// nil slice and a total of 0.
func (c *Chain) Next(id int) ([]ChainToken, int) {
	if id < 0 || id >= len(c.next) {
		return nil, 0
	}
	choices := c.next[id]
	if len(choices) == 0 {
		return nil, 0
	}
	var total int
	for _, choice := range choices {
		total += choice.Freq
	}
	return slices.Clone(choices), total
}

// Transitions returns the successor counts of token id as a map keyed by
// target index.
func (c *Chain) Transitions(id int) map[int]int {
	m := make(map[int]int)
	if id < 0 || id >= len(c.next) {
		return m
	}
	for _, choice := range c.next[id] {
		m[choice.Id] = choice.Freq
	}
	return m
}
