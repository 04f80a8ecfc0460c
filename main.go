package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	wvt "github.com/weaviate/weaviate-go-client/v5/weaviate"

	"docrag/features/ingest"
	"docrag/features/query"
	"docrag/features/stats"
	"docrag/internal/adapter/gemini"
	"docrag/internal/adapter/ollama"
	"docrag/internal/adapter/qdrant"
	redisadapter "docrag/internal/adapter/redis"
	"docrag/internal/adapter/reranker"
	wstore "docrag/internal/adapter/weaviate"
	"docrag/internal/ai"
	"docrag/internal/config"
	"docrag/internal/digest"
	"docrag/internal/embed"
	"docrag/internal/kv"
	"docrag/internal/logger"
	"docrag/internal/middleware"
	"docrag/internal/retry"
	"docrag/internal/summarize"
	"docrag/internal/text"
	"docrag/internal/vector"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Key-value store: digests and ingestion status survive restarts when
	// Redis is up; otherwise state is process-local.
	var kvStore kv.Store
	redisStore := redisadapter.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redisStore.Ping(pingCtx); err != nil {
		slog.Warn("redis unavailable, using in-memory state", "addr", cfg.RedisAddr, "error", err)
		kvStore = kv.NewMemory()
	} else {
		kvStore = redisStore
		defer redisStore.Close()
	}
	cancel()

	vecStore, err := buildVectorStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize vector store", "error", err)
		os.Exit(1)
	}

	engine, err := buildEngine(ctx, cfg, log)
	if err != nil {
		slog.Error("failed to initialize AI engine", "error", err)
		os.Exit(1)
	}

	batcher := embed.NewBatcher(engine, cfg.EmbedBatchSize, retry.Policy{
		MaxAttempts: cfg.EmbedRetryAttempts,
		BaseDelay:   cfg.EmbedRetryBaseDelay,
		MaxDelay:    30 * time.Second,
	}, cfg.CallTimeout, log)

	summarizer := summarize.New(engine, cfg.SummaryWindowSize, cfg.CallTimeout, log)
	splitter := text.Splitter{MaxSize: cfg.MaxChunkSize, Overlap: cfg.ChunkOverlap}

	ingestService := ingest.NewService(
		digest.NewTracker(kvStore),
		splitter,
		batcher,
		vecStore,
		summarizer,
		kvStore,
		cfg.EmbedBatchSize,
		cfg.IngestQueueSize,
		log,
	)
	ingestService.Start(ctx, cfg.IngestWorkers)
	ingestHandler := ingest.NewHandler(ingestService, cfg.Extensions(), int(cfg.MaxUploadSizeMB)<<20)

	queryService := query.NewService(batcher, vecStore, engine, cfg.QueryTopK, cfg.SimilarityThreshold, cfg.MaxContextTokens, cfg.CallTimeout, log)
	queryHandler := query.NewHandler(queryService, cfg.MinQuestionLength)
	statsHandler := stats.NewHandler(vecStore)

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("POST /ingest", middleware.CorrelationID(enableCORS(ingestHandler.Create)))
	mux.Handle("GET /ingest-status/{filename}", middleware.CorrelationID(enableCORS(ingestHandler.Status)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(ingestHandler.List)))
	mux.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Ask)))
	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	ingestService.Wait()
}

func buildVectorStore(ctx context.Context, cfg *config.Config) (vector.Store, error) {
	switch cfg.VectorBackend {
	case "memory":
		return vector.NewMemory(), nil

	case "weaviate":
		client, err := wvt.NewClient(wvt.Config{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
		})
		if err != nil {
			return nil, fmt.Errorf("creating weaviate client: %w", err)
		}
		store := wstore.NewStore(client)

		// Weaviate may still be starting alongside us.
		var ensureErr error
		for i := 0; i < 10; i++ {
			if ensureErr = wstore.EnsureSchema(ctx, store.Schema()); ensureErr == nil {
				slog.Info("weaviate schema ensured")
				return store, nil
			}
			slog.Warn("failed to ensure weaviate schema, retrying...", "attempt", i+1, "error", ensureErr)
			time.Sleep(2 * time.Second)
		}
		return nil, fmt.Errorf("ensuring weaviate schema: %w", ensureErr)

	case "qdrant":
		store := qdrant.NewStore(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		})
		if err := store.Init(ctx, cfg.VectorSize); err != nil {
			return nil, fmt.Errorf("initializing qdrant collection: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func buildEngine(ctx context.Context, cfg *config.Config, log *slog.Logger) (ai.Engine, error) {
	switch cfg.AIProvider {
	case "gemini":
		var rr *reranker.Client
		if cfg.RerankProvider != "" {
			rr = reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey)
		}
		return gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbedModel, cfg.GeminiChatModel, rr, log)

	case "ollama":
		return ollama.New(cfg.OllamaHost, cfg.OllamaEmbedModel, cfg.OllamaChatModel)

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
