// Package ai defines the capability contract for the external models that
// perform embedding, summarization, answering, and reranking. Providers are
// interchangeable behind this one interface and are selected once at
// construction time from configuration.
package ai

import "context"

type Engine interface {
	// EmbedTexts returns one vector per input text, all with the same
	// dimensionality.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Summarize reduces text to at most maxWords words.
	Summarize(ctx context.Context, text string, maxWords int) (string, error)

	// AnswerQuestion answers the question from the supplied context only.
	AnswerQuestion(ctx context.Context, question, contextText string) (string, error)

	// Rerank returns indices into docs ordered by relevance to the query,
	// most relevant first.
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

// IdentityOrder is the rerank result when no reranking capability is
// configured.
func IdentityOrder(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
