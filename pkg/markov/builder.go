package markov

import (
	"cmp"
	"fmt"
	"slices"
)

// Builder accumulates tokenized lines into a Chain. Index assignment depends on
// the order in which lines are added, so a Builder must be fed from a single
// goroutine in a stable order.
type Builder struct {
	tokens   []string
	ids      map[string]int
	counts   []map[int]int
	starts   []int
	ends     []int
	startSet map[int]struct{}
	endSet   map[int]struct{}
	lines    int64
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		ids:      make(map[string]int),
		startSet: make(map[int]struct{}),
		endSet:   make(map[int]struct{}),
	}
}

// Add records one line of tokens. The first token is marked as a start token,
// the last as an end token, and every consecutive pair increments its
// transition count. An empty line is ignored.
func (b *Builder) Add(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	prev := -1
	for i, token := range tokens {
		id := b.intern(token)

		if i == 0 {
			b.markStart(id)
		}
		if i == len(tokens)-1 {
			b.markEnd(id)
		}

		if prev >= 0 {
			if err := b.link(prev, id); err != nil {
				return fmt.Errorf("line %d: %w", b.lines, err)
			}
		}
		prev = id
	}
	b.lines++
	return nil
}

// Lines returns the number of non-empty lines added so far.
func (b *Builder) Lines() int64 {
	return b.lines
}

// Len returns the current vocabulary size.
func (b *Builder) Len() int {
	return len(b.tokens)
}

// Chain returns an immutable snapshot of everything added so far. The Builder
// remains usable afterwards and later additions do not affect the snapshot.
func (b *Builder) Chain() *Chain {
	c := &Chain{
		tokens: slices.Clone(b.tokens),
		ids:    make(map[string]int, len(b.ids)),
		next:   make([][]ChainToken, len(b.counts)),
		starts: slices.Clone(b.starts),
		ends:   slices.Clone(b.ends),
	}
	for k, v := range b.ids {
		c.ids[k] = v
	}
	for i, counts := range b.counts {
		c.next[i] = sortedChoices(counts)
	}
	return c
}

// intern resolves the index of token, appending it to the vocabulary if unseen.
func (b *Builder) intern(token string) int {
	if id, ok := b.ids[token]; ok {
		return id
	}
	id := len(b.tokens)
	b.tokens = append(b.tokens, token)
	b.ids[token] = id
	b.counts = append(b.counts, make(map[int]int))
	return id
}

func (b *Builder) markStart(id int) {
	if _, ok := b.startSet[id]; ok {
		return
	}
	b.startSet[id] = struct{}{}
	b.starts = append(b.starts, id)
}

func (b *Builder) markEnd(id int) {
	if _, ok := b.endSet[id]; ok {
		return
	}
	b.endSet[id] = struct{}{}
	b.ends = append(b.ends, id)
}

func (b *Builder) link(from, to int) error {
	if from < 0 || from >= len(b.counts) || to < 0 || to >= len(b.tokens) {
		return fmt.Errorf("%w: link %d -> %d with %d tokens", ErrBuild, from, to, len(b.tokens))
	}
	b.counts[from][to]++
	return nil
}

// Build is a convenience wrapper that feeds every line to a new Builder in
// order and returns the resulting Chain.
func Build(lines [][]string) (*Chain, error) {
	b := NewBuilder()
	for _, line := range lines {
		if err := b.Add(line); err != nil {
			return nil, err
		}
	}
	return b.Chain(), nil
}

func sortedChoices(counts map[int]int) []ChainToken {
	choices := make([]ChainToken, 0, len(counts))
	for id, freq := range counts {
		choices = append(choices, ChainToken{Id: id, Freq: freq})
	}
	slices.SortFunc(choices, func(a, b ChainToken) int {
		return cmp.Compare(a.Id, b.Id)
	})
	return choices
}
