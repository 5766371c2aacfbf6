package llm

import (
	"context"
)

// LLMClient is the only capability the summarizer needs from a provider.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RerankerClient orders documents by relevance to a query. The result is a
// permutation of document indices, most relevant first.
type RerankerClient interface {
	Rank(ctx context.Context, query string, documents []string) ([]int, error)
}
