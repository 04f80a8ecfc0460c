// Package ollama implements the AI engine against a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"docrag/internal/ai"
)

type Engine struct {
	client     *api.Client
	embedModel string
	chatModel  string
}

func New(baseURL, embedModel, chatModel string) (*Engine, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama url %q: %w", baseURL, err)
	}
	client := api.NewClient(u, &http.Client{Timeout: 120 * time.Second})
	return &Engine{
		client:     client,
		embedModel: embedModel,
		chatModel:  chatModel,
	}, nil
}

func (e *Engine) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.embedModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return resp.Embeddings, nil
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

// Rerank keeps the caller's order. Ollama has no rerank endpoint.
func (e *Engine) Rerank(_ context.Context, _ string, docs []string) ([]int, error) {
	return ai.IdentityOrder(len(docs)), nil
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var sb strings.Builder
	err := e.client.Generate(ctx, &api.GenerateRequest{
		Model:  e.chatModel,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generation: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
