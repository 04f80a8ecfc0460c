// Package ingest owns the document ingestion pipeline: digest check,
// extraction, chunking, embedding, storage, and summarization, with
// per-filename status visible throughout.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docrag/internal/digest"
	"docrag/internal/extract"
	"docrag/internal/kv"
	"docrag/internal/text"
	"docrag/internal/vector"
)

const statusKeyPrefix = "ingestion_status:"

// Pipeline states, persisted to the KV store at every transition.
const (
	StatusReceived    = "received"
	StatusSkipped     = "skipped"
	StatusExtracting  = "extracting"
	StatusChunking    = "chunking"
	StatusEmbedding   = "embedding"
	StatusStoring     = "storing"
	StatusSummarizing = "summarizing"
	StatusCompleted   = "completed"
)

var (
	ErrQueueFull      = errors.New("ingestion queue full")
	ErrStatusNotFound = errors.New("no ingestion status for file")
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Single(ctx context.Context, text string) ([]float32, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) string
}

type Service struct {
	tracker    *digest.Tracker
	splitter   text.Splitter
	embedder   Embedder
	store      vector.Store
	summarizer Summarizer
	status     kv.Store
	batchSize  int
	logger     *slog.Logger

	queue chan job
	wg    sync.WaitGroup

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type job struct {
	filename string
	content  []byte
}

func NewService(tracker *digest.Tracker, splitter text.Splitter, embedder Embedder, store vector.Store, summarizer Summarizer, status kv.Store, batchSize, queueSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 50
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		tracker:    tracker,
		splitter:   splitter,
		embedder:   embedder,
		store:      store,
		summarizer: summarizer,
		status:     status,
		batchSize:  batchSize,
		logger:     logger,
		queue:      make(chan job, queueSize),
		locks:      make(map[string]*sync.Mutex),
	}
}

// Start launches the background workers. They drain the queue until ctx is
// canceled; Wait blocks until all of them have returned.
func (s *Service) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				if ctx.Err() != nil {
					s.drain(ctx)
					return
				}
				select {
				case <-ctx.Done():
					s.drain(ctx)
					return
				case j := <-s.queue:
					if err := s.Ingest(ctx, j.filename, j.content); err != nil {
						s.logger.Error("background ingestion failed",
							slog.String("filename", j.filename),
							slog.String("error", err.Error()))
					}
				}
			}
		}()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// drain marks jobs still queued at shutdown with a terminal status so
// pollers are not left watching "received" forever.
func (s *Service) drain(ctx context.Context) {
	for {
		select {
		case j := <-s.queue:
			s.setStatus(context.WithoutCancel(ctx), j.filename, "failed: service shut down before ingestion")
		default:
			return
		}
	}
}

// Enqueue accepts a document for background ingestion. It never blocks: a
// full queue is reported to the caller instead of stalling the request.
func (s *Service) Enqueue(ctx context.Context, filename string, content []byte) error {
	select {
	case s.queue <- job{filename: filename, content: content}:
		s.setStatus(ctx, filename, StatusReceived)
		return nil
	default:
		return ErrQueueFull
	}
}

// Ingest runs the full pipeline for one document, synchronously. Concurrent
// calls for the same filename serialize on a per-filename lock so the
// digest check and store writes cannot interleave.
func (s *Service) Ingest(ctx context.Context, filename string, content []byte) error {
	lock := s.fileLock(filename)
	lock.Lock()
	defer lock.Unlock()

	log := s.logger.With(slog.String("filename", filename))
	s.setStatus(ctx, filename, StatusReceived)

	if s.tracker.Exists(ctx, filename, content) {
		log.Info("document unchanged, skipping")
		s.setStatus(ctx, filename, StatusSkipped)
		return nil
	}

	generation := uuid.NewString()

	s.setStatus(ctx, filename, StatusExtracting)
	sections := extract.Extract(ctx, filename, content)
	log.Info("extracted document", slog.Int("sections", len(sections)))

	s.setStatus(ctx, filename, StatusChunking)
	chunks := text.ChunkSections(filename, sections, s.splitter)
	log.Info("chunked document", slog.Int("chunks", len(chunks)))

	if err := s.embedAndStore(ctx, filename, generation, chunks); err != nil {
		s.rollback(ctx, filename, generation)
		s.setStatus(ctx, filename, "failed: "+err.Error())
		return err
	}

	s.setStatus(ctx, filename, StatusSummarizing)
	s.storeSummary(ctx, filename, generation, sections)

	s.supersede(ctx, filename, generation)

	if err := s.tracker.Save(ctx, filename, content); err != nil {
		// The document is fully stored; a lost digest only costs one
		// redundant re-ingestion later.
		log.Warn("saving digest failed", slog.String("error", err.Error()))
	}

	s.setStatus(ctx, filename, StatusCompleted)
	log.Info("ingestion completed", slog.String("generation", generation))
	return nil
}

// Status returns the persisted pipeline state for filename.
func (s *Service) Status(ctx context.Context, filename string) (string, error) {
	v, err := s.status.Get(ctx, statusKeyPrefix+filename)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrStatusNotFound
		}
		return "", err
	}
	return v, nil
}

// Documents lists the distinct document names present in the vector store.
func (s *Service) Documents(ctx context.Context) ([]string, error) {
	return s.store.ListDistinct(ctx, "doc_name")
}

func (s *Service) embedAndStore(ctx context.Context, filename, generation string, chunks []text.Chunk) error {
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		s.setStatus(ctx, filename, StatusEmbedding)
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d..%d: %w", start, end, err)
		}

		s.setStatus(ctx, filename, StatusStoring)
		records := make([]vector.Record, len(batch))
		for i, c := range batch {
			records[i] = vector.Record{
				ID:     uuid.NewString(),
				Vector: vectors[i],
				Payload: vector.Payload{
					Text:       c.Text,
					DocName:    c.DocName,
					Page:       c.Page,
					Paragraph:  c.Paragraph,
					Generation: generation,
				},
			}
		}
		if err := s.store.AddRecords(ctx, records); err != nil {
			return fmt.Errorf("storing chunks %d..%d: %w", start, end, err)
		}
	}
	return nil
}

// storeSummary writes one whole-document summary record. Failures degrade
// to a document without a summary; chunk retrieval still works.
func (s *Service) storeSummary(ctx context.Context, filename, generation string, sections []extract.Section) {
	log := s.logger.With(slog.String("filename", filename))

	var sb strings.Builder
	for _, sec := range sections {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(sec.Text)
	}

	summary := s.summarizer.Summarize(ctx, sb.String())
	if summary == "" {
		log.Warn("empty summary, skipping summary record")
		return
	}

	vec, err := s.embedder.Single(ctx, summary)
	if err != nil {
		log.Warn("embedding summary failed, skipping summary record", slog.String("error", err.Error()))
		return
	}

	record := vector.Record{
		ID:     uuid.NewString(),
		Vector: vec,
		Payload: vector.Payload{
			Text:       summary,
			DocName:    filename,
			IsSummary:  true,
			Generation: generation,
		},
	}
	if err := s.store.AddRecords(ctx, []vector.Record{record}); err != nil {
		log.Warn("storing summary failed", slog.String("error", err.Error()))
	}
}

// rollback removes the records already written under an aborted generation
// so a partially embedded document is never queryable next to its prior
// version. Runs even when the failure was a context cancellation.
func (s *Service) rollback(ctx context.Context, filename, generation string) {
	err := s.store.DeleteWhere(context.WithoutCancel(ctx), vector.Filter{"doc_name": filename, "generation": generation})
	if err != nil {
		s.logger.Warn("rolling back aborted generation failed",
			slog.String("filename", filename),
			slog.String("generation", generation),
			slog.String("error", err.Error()))
	}
}

// supersede deletes records from prior ingestion runs of this document.
// The new generation is fully written first, so a reader never sees the
// document disappear.
func (s *Service) supersede(ctx context.Context, filename, generation string) {
	records, err := s.store.GetWhere(ctx, vector.Filter{"doc_name": filename})
	if err != nil {
		s.logger.Warn("listing prior generations failed",
			slog.String("filename", filename), slog.String("error", err.Error()))
		return
	}

	old := make(map[string]bool)
	for _, r := range records {
		if r.Payload.Generation != generation {
			old[r.Payload.Generation] = true
		}
	}
	for g := range old {
		err := s.store.DeleteWhere(ctx, vector.Filter{"doc_name": filename, "generation": g})
		if err != nil {
			s.logger.Warn("deleting superseded generation failed",
				slog.String("filename", filename),
				slog.String("generation", g),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Service) setStatus(ctx context.Context, filename, status string) {
	if err := s.status.Set(ctx, statusKeyPrefix+filename, status); err != nil {
		s.logger.Warn("persisting ingestion status failed",
			slog.String("filename", filename),
			slog.String("status", status),
			slog.String("error", err.Error()))
	}
}

func (s *Service) fileLock(filename string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[filename]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[filename] = lock
	}
	return lock
}
