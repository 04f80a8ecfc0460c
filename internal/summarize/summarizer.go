// Package summarize produces one summary per document by summarizing
// fixed-size windows independently and then reducing the window summaries
// into a single pass. A failed window degrades to nothing rather than
// failing the document.
package summarize

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"docrag/internal/ai"
)

const (
	defaultWindowSize = 500

	// Per-window summaries target half the window's word count so short
	// windows are not compressed into nonsense.
	minWindowWords = 30
	maxWindowWords = 500

	minFinalWords = 30
	maxFinalWords = 100
)

type Summarizer struct {
	engine     ai.Engine
	windowSize int
	timeout    time.Duration
	logger     *slog.Logger
}

// New builds a Summarizer. A timeout > 0 bounds every individual engine
// call; zero disables the bound.
func New(engine ai.Engine, windowSize int, timeout time.Duration, logger *slog.Logger) *Summarizer {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &Summarizer{engine: engine, windowSize: windowSize, timeout: timeout, logger: logger}
}

// Summarize returns a summary of text. It never fails outright: window
// failures are dropped, and if the final reduction pass fails the joined
// window summaries are returned unreduced.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var parts []string
	for _, window := range s.windows(text) {
		words := len(strings.Fields(window))
		target := clamp(words/2, minWindowWords, maxWindowWords)

		summary, err := s.summarizeOnce(ctx, window, target)
		if err != nil {
			s.logger.Warn("window summarization failed, dropping window",
				slog.Int("window_chars", len(window)),
				slog.String("error", err.Error()))
			continue
		}
		if summary != "" {
			parts = append(parts, summary)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	joined := strings.Join(parts, " ")
	if len(parts) == 1 {
		return joined
	}

	target := clamp(len(strings.Fields(joined))/2, minFinalWords, maxFinalWords)
	final, err := s.summarizeOnce(ctx, joined, target)
	if err != nil || final == "" {
		if err != nil {
			s.logger.Warn("final reduction pass failed, returning unreduced summary",
				slog.String("error", err.Error()))
		}
		return joined
	}
	return final
}

// summarizeOnce makes one engine call under the configured timeout; a
// hung provider cannot stall the pipeline past it.
func (s *Summarizer) summarizeOnce(ctx context.Context, text string, target int) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.engine.Summarize(ctx, text, target)
}

func (s *Summarizer) windows(text string) []string {
	var out []string
	for start := 0; start < len(text); start += s.windowSize {
		end := start + s.windowSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
