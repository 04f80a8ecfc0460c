// Package query answers questions over the ingested corpus: retrieve,
// threshold, rerank, assemble a budgeted context, and generate.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"docrag/internal/ai"
	"docrag/internal/vector"
)

// Canned answers for the degraded paths. The generation capability is
// never invoked without qualifying context, so it cannot hallucinate an
// answer out of nothing.
const (
	answerNoContext   = "No relevant information found."
	answerEngineError = "An error occurred while processing your query."
	answerEmpty       = "I'm not sure based on the available information."
)

type Embedder interface {
	Single(ctx context.Context, text string) ([]float32, error)
}

type RankedMatch struct {
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

type Metrics struct {
	AnswerInContext  bool    `json:"answer_in_context"`
	ContextPrecision float64 `json:"context_precision"`
}

type Result struct {
	Question      string           `json:"question"`
	Answer        string           `json:"answer"`
	Score         float64          `json:"score"`
	Context       []string         `json:"context"`
	Summary       string           `json:"summary"`
	Sources       []map[string]any `json:"sources"`
	RankedMatches []RankedMatch    `json:"ranked_matches"`
	Metrics       Metrics          `json:"rag_metrics"`
}

type Service struct {
	embedder  Embedder
	store     vector.Store
	engine    ai.Engine
	topK      int
	threshold float64
	maxWords  int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewService builds the query orchestrator. A timeout > 0 bounds each
// rerank and generation call; zero disables the bound.
func NewService(embedder Embedder, store vector.Store, engine ai.Engine, topK int, threshold float64, maxWords int, timeout time.Duration, logger *slog.Logger) *Service {
	if topK <= 0 {
		topK = 10
	}
	if maxWords <= 0 {
		maxWords = 3000
	}
	return &Service{
		embedder:  embedder,
		store:     store,
		engine:    engine,
		topK:      topK,
		threshold: threshold,
		maxWords:  maxWords,
		timeout:   timeout,
		logger:    logger,
	}
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) Answer(ctx context.Context, question string) (Result, error) {
	result := Result{
		Question: question,
		Context:  []string{},
		Sources:  []map[string]any{},
	}

	vec, err := s.embedder.Single(ctx, question)
	if err != nil {
		return result, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := s.store.Query(ctx, vec, s.topK)
	if err != nil {
		return result, fmt.Errorf("querying vector store: %w", err)
	}

	qualifying := make([]vector.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= s.threshold && !m.IsSummary {
			qualifying = append(qualifying, m)
		}
	}
	if len(qualifying) == 0 {
		result.Answer = answerNoContext
		return result, nil
	}

	sort.Slice(qualifying, func(i, j int) bool {
		return qualifying[i].Score > qualifying[j].Score
	})

	qualifying = s.rerank(ctx, question, qualifying)

	result.Summary = s.documentSummaries(ctx, qualifying)

	retained, contextStr := s.assembleContext(result.Summary, qualifying)
	for _, m := range retained {
		result.Context = append(result.Context, m.Text)
		result.Sources = append(result.Sources, m.Payload.Metadata())
		if m.Score > result.Score {
			result.Score = m.Score
		}
	}
	for _, m := range qualifying {
		result.RankedMatches = append(result.RankedMatches, RankedMatch{
			Text:       m.Text,
			Metadata:   m.Payload.Metadata(),
			Similarity: m.Score,
		})
	}

	genCtx, cancel := s.callContext(ctx)
	defer cancel()
	answer, err := s.engine.AnswerQuestion(genCtx, question, contextStr)
	if err != nil {
		s.logger.Error("answer generation failed", slog.String("error", err.Error()))
		result.Answer = answerEngineError
		result.Score = 0
		return result, nil
	}
	if answer == "" {
		answer = answerEmpty
	}
	result.Answer = answer
	result.Metrics = computeMetrics(answer, retained)
	return result, nil
}

// rerank delegates ordering to the engine. Failures keep the similarity
// order; indices the engine did not mention keep their place at the end.
func (s *Service) rerank(ctx context.Context, question string, matches []vector.Match) []vector.Match {
	docs := make([]string, len(matches))
	for i, m := range matches {
		docs[i] = m.Text
	}
	rerankCtx, cancel := s.callContext(ctx)
	defer cancel()
	indices, err := s.engine.Rerank(rerankCtx, question, docs)
	if err != nil {
		s.logger.Warn("reranking failed, keeping similarity order", slog.String("error", err.Error()))
		return matches
	}

	seen := make(map[int]bool, len(indices))
	reordered := make([]vector.Match, 0, len(matches))
	for _, idx := range indices {
		if idx < 0 || idx >= len(matches) || seen[idx] {
			continue
		}
		seen[idx] = true
		reordered = append(reordered, matches[idx])
	}
	for i, m := range matches {
		if !seen[i] {
			reordered = append(reordered, m)
		}
	}
	return reordered
}

// documentSummaries fetches the stored whole-document summary of every
// matched document and joins them.
func (s *Service) documentSummaries(ctx context.Context, matches []vector.Match) string {
	seen := make(map[string]bool)
	var parts []string
	for _, m := range matches {
		if seen[m.DocName] {
			continue
		}
		seen[m.DocName] = true

		records, err := s.store.GetWhere(ctx, vector.Filter{"doc_name": m.DocName, "is_summary": true})
		if err != nil {
			s.logger.Warn("fetching document summary failed",
				slog.String("doc_name", m.DocName), slog.String("error", err.Error()))
			continue
		}
		for _, r := range records {
			if r.Payload.Text != "" {
				parts = append(parts, r.Payload.Text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// assembleContext builds the generation context under the word budget:
// summary first, then chunks in rank order. A chunk that would overflow
// the budget is omitted, not truncated.
func (s *Service) assembleContext(summary string, matches []vector.Match) ([]vector.Match, string) {
	var parts []string
	words := 0

	if summary != "" {
		parts = append(parts, "Summary:\n"+summary)
		words += len(strings.Fields(summary))
	}

	var retained []vector.Match
	for _, m := range matches {
		w := len(strings.Fields(m.Text))
		if words+w > s.maxWords {
			break
		}
		words += w
		parts = append(parts, m.Text)
		retained = append(retained, m)
	}
	return retained, strings.Join(parts, "\n\n")
}

// computeMetrics grades the answer against the retained chunks: is it
// contained verbatim anywhere, and in what fraction of the chunks.
func computeMetrics(answer string, retained []vector.Match) Metrics {
	if len(retained) == 0 {
		return Metrics{}
	}
	needle := strings.ToLower(answer)
	hits := 0
	for _, m := range retained {
		if strings.Contains(strings.ToLower(m.Text), needle) {
			hits++
		}
	}
	return Metrics{
		AnswerInContext:  hits > 0,
		ContextPrecision: float64(hits) / float64(len(retained)),
	}
}
