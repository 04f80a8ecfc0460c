// bulkctl drives bulk ingestion of a directory tree against a running
// service instance, with durable success/failure ledgers for resumability.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	redisadapter "docrag/internal/adapter/redis"
	"docrag/internal/bulk"
	"docrag/internal/config"
	"docrag/internal/kv"
	"docrag/internal/retry"
)

var (
	inputDir    string
	logDir      string
	endpoint    string
	concurrency int
	patterns    []string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:   "bulkctl",
		Short: "Bulk document ingestion for the retrieval service",
	}
	root.PersistentFlags().StringVar(&inputDir, "input-dir", "./documents", "directory tree to scan for documents")
	root.PersistentFlags().StringVar(&logDir, "log-dir", "./bulk-logs", "directory holding the success/failure ledgers")
	root.PersistentFlags().StringVar(&endpoint, "endpoint", "http://localhost:8001", "base URL of the running service")
	root.PersistentFlags().IntVar(&concurrency, "concurrency", 20, "maximum concurrent ingestions")
	root.PersistentFlags().StringSliceVar(&patterns, "patterns", []string{"*.pdf", "*.md", "*.xml", "*.akn", "*.txt"}, "filename patterns to ingest")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the input directory and ingest every file not yet in the success ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), logger, false)
		},
	}
	retryCmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-ingest exactly the files in the failure ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), logger, true)
		},
	}
	root.AddCommand(runCmd, retryCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("bulk ingestion failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func execute(ctx context.Context, logger *slog.Logger, retryMode bool) error {
	success := bulk.LoadLedger(filepath.Join(logDir, "success.json"))
	failed := bulk.LoadLedger(filepath.Join(logDir, "failed.json"))

	coordinator := bulk.NewCoordinator(
		bulk.NewHTTPIngestor(endpoint),
		success,
		failed,
		progressStore(ctx, logger),
		patterns,
		concurrency,
		retry.Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
		logger,
	)

	var (
		stats bulk.Stats
		err   error
	)
	if retryMode {
		stats, err = coordinator.Retry(ctx, inputDir)
	} else {
		stats, err = coordinator.Run(ctx, inputDir)
	}
	if err != nil {
		return err
	}

	logger.Info("bulk ingestion finished",
		slog.Int("total", stats.Total),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped))

	fmt.Printf("total=%d succeeded=%d failed=%d skipped=%d\n",
		stats.Total, stats.Succeeded, stats.Failed, stats.Skipped)
	if stats.Failed > 0 {
		return fmt.Errorf("%d file(s) failed, run %q to reprocess them", stats.Failed, "bulkctl retry")
	}
	return nil
}

// progressStore mirrors live per-file status to Redis for dashboards. A
// Redis that is down degrades to in-process progress; the ledgers on disk
// remain the source of truth either way.
func progressStore(ctx context.Context, logger *slog.Logger) kv.Store {
	cfg, err := config.Load()
	if err != nil {
		// Bulk runs do not need the full service config (AI keys etc);
		// fall back to the default Redis address.
		cfg = &config.Config{RedisAddr: "localhost:6379"}
	}

	store := redisadapter.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, progress will not be mirrored",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()))
		return kv.NewMemory()
	}
	return store
}
