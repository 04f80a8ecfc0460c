// Package gemini implements the AI engine on top of the Google
// generative-ai-go SDK.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"docrag/internal/adapter/reranker"
	"docrag/internal/ai"
)

type Engine struct {
	client     *genai.Client
	embedModel string
	chatModel  string
	reranker   *reranker.Client
	logger     *slog.Logger
}

// New dials the Gemini API. The reranker is optional; when nil, Rerank
// keeps the caller's order.
func New(ctx context.Context, apiKey, embedModel, chatModel string, rr *reranker.Client, logger *slog.Logger) (*Engine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Engine{
		client:     client,
		embedModel: embedModel,
		chatModel:  chatModel,
		reranker:   rr,
		logger:     logger,
	}, nil
}

func (e *Engine) Close() error {
	return e.client.Close()
}

func (e *Engine) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(e.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embedding batch of %d: %w", len(texts), err)
	}

	vectors := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		vectors = append(vectors, emb.Values)
	}
	return vectors, nil
}

func (e *Engine) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following text in at most %d words. Keep the key facts and omit filler.\n\n%s",
		maxWords, text,
	)
	return e.generate(ctx, prompt)
}

func (e *Engine) AnswerQuestion(ctx context.Context, question, contextText string) (string, error) {
	prompt := fmt.Sprintf(
		"Answer the question using only the context below. If the context does not contain the answer, say so.\n\nContext:\n%s\n\nQuestion: %s",
		contextText, question,
	)
	return e.generate(ctx, prompt)
}

func (e *Engine) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	if e.reranker == nil {
		return ai.IdentityOrder(len(docs)), nil
	}
	return e.reranker.Rerank(ctx, query, docs)
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	model := e.client.GenerativeModel(e.chatModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}
