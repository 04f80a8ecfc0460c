package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docrag/features/ingest"
	"docrag/internal/digest"
	"docrag/internal/kv"
	"docrag/internal/text"
	"docrag/internal/vector"
)

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failAll  bool
	failFrom int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll || (f.failFrom > 0 && f.calls >= f.failFrom) {
		return nil, errors.New("embedding provider down")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Single(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

type fakeSummarizer struct {
	summary string
}

func (f *fakeSummarizer) Summarize(context.Context, string) string {
	return f.summary
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fixture struct {
	service  *ingest.Service
	status   kv.Store
	store    *vector.Memory
	embedder *fakeEmbedder
}

func newFixture(embedder *fakeEmbedder, summary string) fixture {
	status := kv.NewMemory()
	store := vector.NewMemory()
	svc := ingest.NewService(
		digest.NewTracker(status),
		text.Splitter{MaxSize: 500, Overlap: 100},
		embedder,
		store,
		&fakeSummarizer{summary: summary},
		status,
		50, 8,
		testLogger(),
	)
	return fixture{service: svc, status: status, store: store, embedder: embedder}
}

func TestIngest_HappyPath(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "doc summary")
	ctx := context.Background()

	err := f.service.Ingest(ctx, "notes.txt", []byte("first paragraph\n\nsecond paragraph"))
	assert.NoError(t, err)

	status, err := f.service.Status(ctx, "notes.txt")
	assert.NoError(t, err)
	assert.Equal(t, ingest.StatusCompleted, status)

	chunks, err := f.store.GetWhere(ctx, vector.Filter{"doc_name": "notes.txt", "is_summary": false})
	assert.NoError(t, err)
	assert.NotEmpty(t, chunks)

	summaries, err := f.store.GetWhere(ctx, vector.Filter{"doc_name": "notes.txt", "is_summary": true})
	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "doc summary", summaries[0].Payload.Text)
}

func TestIngest_UnchangedContentSkips(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "s")
	ctx := context.Background()
	content := []byte("same content")

	assert.NoError(t, f.service.Ingest(ctx, "a.txt", content))
	callsAfterFirst := f.embedder.calls

	assert.NoError(t, f.service.Ingest(ctx, "a.txt", content))

	status, _ := f.service.Status(ctx, "a.txt")
	assert.Equal(t, ingest.StatusSkipped, status)
	assert.Equal(t, callsAfterFirst, f.embedder.calls)
}

func TestIngest_ChangedContentReingests(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "s")
	ctx := context.Background()

	assert.NoError(t, f.service.Ingest(ctx, "a.txt", []byte("version one")))
	assert.NoError(t, f.service.Ingest(ctx, "a.txt", []byte("version two, changed")))

	status, _ := f.service.Status(ctx, "a.txt")
	assert.Equal(t, ingest.StatusCompleted, status)

	records, err := f.store.GetWhere(ctx, vector.Filter{"doc_name": "a.txt", "is_summary": false})
	assert.NoError(t, err)
	for _, r := range records {
		assert.Contains(t, r.Payload.Text, "version two")
	}
}

func TestIngest_SupersedeRemovesOldGeneration(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "s")
	ctx := context.Background()

	assert.NoError(t, f.service.Ingest(ctx, "a.txt", []byte("version one")))
	assert.NoError(t, f.service.Ingest(ctx, "a.txt", []byte("version two")))

	records, err := f.store.GetWhere(ctx, vector.Filter{"doc_name": "a.txt"})
	assert.NoError(t, err)

	generations := make(map[string]bool)
	for _, r := range records {
		generations[r.Payload.Generation] = true
	}
	assert.Len(t, generations, 1)
}

func TestIngest_EmbeddingFailureFailsDocument(t *testing.T) {
	f := newFixture(&fakeEmbedder{failAll: true}, "s")
	ctx := context.Background()

	err := f.service.Ingest(ctx, "a.txt", []byte("some content"))
	assert.Error(t, err)

	status, statusErr := f.service.Status(ctx, "a.txt")
	assert.NoError(t, statusErr)
	assert.Contains(t, status, "failed:")

	// A failed run must not record the digest, or the retry would skip.
	err = f.service.Ingest(ctx, "a.txt", []byte("some content"))
	assert.Error(t, err)
	assert.Greater(t, f.embedder.calls, 1)
}

func TestIngest_FailedReingestLeavesNoPartialGeneration(t *testing.T) {
	embedder := &fakeEmbedder{}
	status := kv.NewMemory()
	store := vector.NewMemory()
	svc := ingest.NewService(
		digest.NewTracker(status),
		text.Splitter{MaxSize: 20, Overlap: 0},
		embedder,
		store,
		&fakeSummarizer{summary: "s"},
		status,
		1, 8,
		testLogger(),
	)
	ctx := context.Background()

	assert.NoError(t, svc.Ingest(ctx, "a.txt", []byte("version one text")))
	v1, err := store.GetWhere(ctx, vector.Filter{"doc_name": "a.txt", "is_summary": false})
	assert.NoError(t, err)
	assert.NotEmpty(t, v1)
	v1Gen := v1[0].Payload.Generation

	// The re-ingestion embeds its first batch fine and fails on the second.
	embedder.mu.Lock()
	embedder.failFrom = embedder.calls + 2
	embedder.mu.Unlock()

	err = svc.Ingest(ctx, "a.txt", []byte("changed text, long enough to split into several small chunks"))
	assert.Error(t, err)

	// Only the prior generation remains: no partial records of the
	// aborted run are left queryable.
	records, err := store.GetWhere(ctx, vector.Filter{"doc_name": "a.txt"})
	assert.NoError(t, err)
	assert.NotEmpty(t, records)
	for _, r := range records {
		assert.Equal(t, v1Gen, r.Payload.Generation)
	}
}

func TestStart_ShutdownMarksQueuedJobs(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, f.service.Enqueue(context.Background(), "queued.txt", []byte("x")))

	f.service.Start(ctx, 1)
	f.service.Wait()

	status, err := f.service.Status(context.Background(), "queued.txt")
	assert.NoError(t, err)
	assert.Contains(t, status, "failed:")
	assert.Equal(t, 0, f.embedder.calls)
}

func TestIngest_EmptySummaryNotStored(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "")
	ctx := context.Background()

	assert.NoError(t, f.service.Ingest(ctx, "a.txt", []byte("content here")))

	summaries, err := f.store.GetWhere(ctx, vector.Filter{"doc_name": "a.txt", "is_summary": true})
	assert.NoError(t, err)
	assert.Empty(t, summaries)

	status, _ := f.service.Status(ctx, "a.txt")
	assert.Equal(t, ingest.StatusCompleted, status)
}

func TestIngest_EmptyDocumentCompletes(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "")
	ctx := context.Background()

	assert.NoError(t, f.service.Ingest(ctx, "a.txt", []byte("   ")))

	status, _ := f.service.Status(ctx, "a.txt")
	assert.Equal(t, ingest.StatusCompleted, status)
}

func TestEnqueue_FullQueue(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "")
	ctx := context.Background()

	// Queue size is 8 and no workers are running.
	for i := 0; i < 8; i++ {
		assert.NoError(t, f.service.Enqueue(ctx, "a.txt", []byte("x")))
	}
	err := f.service.Enqueue(ctx, "a.txt", []byte("x"))
	assert.ErrorIs(t, err, ingest.ErrQueueFull)
}

func TestStartAndEnqueue_ProcessesInBackground(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "s")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.service.Start(ctx, 2)
	assert.NoError(t, f.service.Enqueue(ctx, "bg.txt", []byte("background content")))

	assert.Eventually(t, func() bool {
		status, err := f.service.Status(context.Background(), "bg.txt")
		return err == nil && status == ingest.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	f.service.Wait()
}

func TestStatus_NotFound(t *testing.T) {
	f := newFixture(&fakeEmbedder{}, "")

	_, err := f.service.Status(context.Background(), "never-seen.txt")
	assert.ErrorIs(t, err, ingest.ErrStatusNotFound)
}
