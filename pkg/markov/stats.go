package markov

// ChainStats holds aggregated statistics for a single chain.
type ChainStats struct {
	Tokens         int // The number of unique tokens in the vocabulary.
	Links          int // The number of unique token->next_token links.
	TotalFrequency int // The sum of frequencies of all links; the total number of trained transitions.
	StartingTokens int // The number of unique tokens that can start a chain.
	EndingTokens   int // The number of unique tokens that closed a line.
}

// Stats returns a snapshot of statistics for the chain.
func (c *Chain) Stats() ChainStats {
	stats := ChainStats{
		Tokens:         len(c.tokens),
		StartingTokens: len(c.starts),
		EndingTokens:   len(c.ends),
	}
	for _, choices := range c.next {
		stats.Links += len(choices)
		for _, choice := range choices {
			stats.TotalFrequency += choice.Freq
		}
	}
	return stats
}
