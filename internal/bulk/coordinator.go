package bulk

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"docrag/internal/kv"
	"docrag/internal/retry"
)

const progressKeyPrefix = "bulk_ingest:"

// Stats summarizes one coordinator run.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

type Coordinator struct {
	ingestor    Ingestor
	success     *Ledger
	failed      *Ledger
	progress    kv.Store
	patterns    []string
	concurrency int64
	policy      retry.Policy
	logger      *slog.Logger
}

func NewCoordinator(ingestor Ingestor, success, failed *Ledger, progress kv.Store, patterns []string, concurrency int, policy retry.Policy, logger *slog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = 20
	}
	return &Coordinator{
		ingestor:    ingestor,
		success:     success,
		failed:      failed,
		progress:    progress,
		patterns:    patterns,
		concurrency: int64(concurrency),
		policy:      policy,
		logger:      logger,
	}
}

// Run scans dir for matching files and ingests everything not already in
// the success ledger. Ledgers are flushed before return, including on
// cancellation.
func (c *Coordinator) Run(ctx context.Context, dir string) (Stats, error) {
	files, err := c.scan(dir)
	if err != nil {
		return Stats{}, err
	}

	var pending []string
	skipped := 0
	for _, path := range files {
		if c.success.Has(filepath.Base(path)) {
			skipped++
			continue
		}
		pending = append(pending, path)
	}
	c.logger.Info("bulk run starting",
		slog.Int("files", len(files)),
		slog.Int("pending", len(pending)),
		slog.Int("already_done", skipped))

	// Seed the progress store so dashboards see the full pending set
	// before any worker picks a file up.
	for _, path := range pending {
		c.setProgress(ctx, filepath.Base(path), "pending")
	}

	stats := c.dispatch(ctx, pending)
	stats.Total = len(files)
	stats.Skipped = skipped
	return stats, c.flush()
}

// Retry re-ingests exactly the files currently in the failure ledger.
func (c *Coordinator) Retry(ctx context.Context, dir string) (Stats, error) {
	names := c.failed.Names()
	var pending []string
	for _, name := range names {
		pending = append(pending, filepath.Join(dir, name))
	}
	c.logger.Info("bulk retry starting", slog.Int("failed_files", len(pending)))

	stats := c.dispatch(ctx, pending)
	stats.Total = len(pending)
	return stats, c.flush()
}

// dispatch fans pending files out over a counting semaphore. Admission is
// cooperative: once ctx is canceled no new file starts, but in-flight
// attempts run to completion.
func (c *Coordinator) dispatch(ctx context.Context, pending []string) Stats {
	sem := semaphore.NewWeighted(c.concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	stats := Stats{}

	for _, path := range pending {
		if ctx.Err() != nil {
			c.logger.Warn("shutdown requested, not admitting further files")
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			ok := c.process(ctx, path)
			mu.Lock()
			if ok {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
			mu.Unlock()
		}(path)
	}
	wg.Wait()
	return stats
}

func (c *Coordinator) process(ctx context.Context, path string) bool {
	name := filepath.Base(path)
	log := c.logger.With(slog.String("file", name))

	content, err := os.ReadFile(path)
	if err != nil {
		log.Error("reading file failed", slog.String("error", err.Error()))
		c.failed.Set(name, err.Error())
		c.setProgress(ctx, name, "failed: "+err.Error())
		return false
	}

	c.setProgress(ctx, name, "started")

	// Once admitted, an attempt finishes even during shutdown; only the
	// backoff waits between attempts honor cancellation.
	attemptCtx := context.WithoutCancel(ctx)
	err = c.policy.Do(ctx, func(context.Context) error {
		return c.ingestor.Ingest(attemptCtx, name, content)
	})
	if err != nil {
		log.Error("ingestion failed after retries", slog.String("error", err.Error()))
		c.failed.Set(name, err.Error())
		c.setProgress(ctx, name, "failed: "+err.Error())
		return false
	}

	c.success.Set(name, time.Now().UTC().Format(time.RFC3339))
	c.failed.Delete(name)
	c.setProgress(ctx, name, "success")
	log.Info("file ingested")
	return true
}

func (c *Coordinator) scan(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if c.matches(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Coordinator) matches(name string) bool {
	if len(c.patterns) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, p := range c.patterns {
		suffix := strings.ToLower(strings.TrimPrefix(p, "*"))
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func (c *Coordinator) setProgress(ctx context.Context, name, status string) {
	// Progress mirrors are advisory; shutdown must not block on them.
	err := c.progress.Set(context.WithoutCancel(ctx), progressKeyPrefix+name, status)
	if err != nil {
		c.logger.Warn("recording bulk progress failed",
			slog.String("file", name), slog.String("error", err.Error()))
	}
}

func (c *Coordinator) flush() error {
	if err := c.success.Flush(); err != nil {
		return err
	}
	return c.failed.Flush()
}
