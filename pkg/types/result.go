package types

// SearchResult is a single ranked file returned from a search.
type SearchResult struct {
	Path    string  // Relative to project root
	AbsPath string
	Content string
	Score   float64 // Cosine similarity against the query embedding
	Tokens  int
}

// TokenStats reports the token savings of returning a ranked subset instead
// of the whole project.
type TokenStats struct {
	TotalTokens   int     `json:"total_tokens"`
	ContextTokens int     `json:"context_tokens"`
	SavedTokens   int     `json:"saved_tokens"`
	SavedPercent  float64 `json:"saved_percent"`
}

// ComputeTokenStats derives savings from the total project token count and
// the token count of the returned subset. A zero total yields 0% rather than
// a division error.
func ComputeTokenStats(totalTokens, contextTokens int) TokenStats {
	saved := totalTokens - contextTokens
	percent := 0.0
	if totalTokens > 0 {
		percent = float64(saved) / float64(totalTokens) * 100
	}
	return TokenStats{
		TotalTokens:   totalTokens,
		ContextTokens: contextTokens,
		SavedTokens:   saved,
		SavedPercent:  percent,
	}
}
