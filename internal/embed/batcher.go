// Package embed turns arbitrary-length text lists into vectors by slicing
// them into provider-sized batches and retrying each batch independently.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docrag/internal/ai"
	"docrag/internal/retry"
)

type Batcher struct {
	engine    ai.Engine
	batchSize int
	policy    retry.Policy
	timeout   time.Duration
	logger    *slog.Logger
}

func NewBatcher(engine ai.Engine, batchSize int, policy retry.Policy, timeout time.Duration, logger *slog.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Batcher{
		engine:    engine,
		batchSize: batchSize,
		policy:    policy,
		timeout:   timeout,
		logger:    logger,
	}
}

// Embed vectorizes texts in order. Each batch is retried per the policy; if
// any batch exhausts its attempts the whole call fails, so callers never see
// a partially embedded document.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var batchVectors [][]float32
		err := b.policy.Do(ctx, func(ctx context.Context) error {
			callCtx := ctx
			if b.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, b.timeout)
				defer cancel()
			}

			vs, err := b.engine.EmbedTexts(callCtx, batch)
			if err != nil {
				b.logger.Warn("embedding batch failed, will retry",
					slog.Int("batch_start", start),
					slog.Int("batch_size", len(batch)),
					slog.String("error", err.Error()))
				return err
			}
			if len(vs) != len(batch) {
				return retry.Permanent(fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(vs)))
			}
			batchVectors = vs
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("embedding texts %d..%d: %w", start, end, err)
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

// Single embeds one text, typically a query.
func (b *Batcher) Single(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned no vector")
	}
	return vectors[0], nil
}
