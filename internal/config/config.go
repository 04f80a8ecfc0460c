package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	// Server
	ServerPort        int    `envconfig:"SERVER_PORT" default:"8001"`
	MaxUploadSizeMB   int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	AllowedExtensions string `envconfig:"ALLOWED_EXTENSIONS" default:".pdf,.md,.xml,.akn,.txt"`
	MinQuestionLength int    `envconfig:"MIN_QUESTION_LENGTH" default:"8"`

	// Key-value store (digest, status, bulk progress)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Vector store
	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"memory"` // memory | weaviate | qdrant
	VectorSize       int    `envconfig:"VECTOR_SIZE" default:"768"`
	WeaviateHost     string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme   string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	QdrantURL        string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey     string `envconfig:"QDRANT_API_KEY"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"documents"`

	// AI engine
	AIProvider       string        `envconfig:"AI_PROVIDER" default:"gemini"` // gemini | ollama
	GeminiAPIKey     string        `envconfig:"GEMINI_API_KEY"`
	GeminiEmbedModel string        `envconfig:"GEMINI_EMBED_MODEL" default:"gemini-embedding-001"`
	GeminiChatModel  string        `envconfig:"GEMINI_CHAT_MODEL" default:"gemini-1.5-flash"`
	OllamaHost       string        `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	OllamaEmbedModel string        `envconfig:"OLLAMA_EMBED_MODEL" default:"nomic-embed-text"`
	OllamaChatModel  string        `envconfig:"OLLAMA_CHAT_MODEL" default:"llama3"`
	RerankProvider   string        `envconfig:"RERANK_PROVIDER"` // jina | cohere | "" (identity)
	RerankAPIKey     string        `envconfig:"RERANK_API_KEY"`
	CallTimeout      time.Duration `envconfig:"AI_CALL_TIMEOUT" default:"60s"`

	// Ingestion pipeline
	MaxChunkSize        int           `envconfig:"MAX_CHUNK_SIZE" default:"500"`
	ChunkOverlap        int           `envconfig:"CHUNK_OVERLAP" default:"100"`
	EmbedBatchSize      int           `envconfig:"EMBED_BATCH_SIZE" default:"50"`
	EmbedRetryAttempts  int           `envconfig:"EMBED_RETRY_ATTEMPTS" default:"3"`
	EmbedRetryBaseDelay time.Duration `envconfig:"EMBED_RETRY_BASE_DELAY" default:"500ms"`
	SummaryWindowSize   int           `envconfig:"SUMMARY_WINDOW_SIZE" default:"500"`
	IngestWorkers       int           `envconfig:"INGEST_WORKERS" default:"4"`
	IngestQueueSize     int           `envconfig:"INGEST_QUEUE_SIZE" default:"64"`

	// Query pipeline
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.5"`
	QueryTopK           int     `envconfig:"QUERY_TOP_K" default:"10"`
	MaxContextTokens    int     `envconfig:"MAX_QA_TOKENS" default:"3000"`
}

func Load() (*Config, error) {
	// Env vars may also be set in the shell; a missing .env is not an error.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.VectorBackend {
	case "memory", "weaviate", "qdrant":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}

	switch c.AIProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}

	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("MAX_CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE)")
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be positive")
	}
	return nil
}

// Extensions returns the allow-listed file extensions, lower-cased,
// each with a leading dot.
func (c *Config) Extensions() []string {
	parts := strings.Split(c.AllowedExtensions, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		exts = append(exts, p)
	}
	return exts
}
