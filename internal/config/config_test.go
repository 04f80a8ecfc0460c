package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docrag/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 8001, cfg.ServerPort)
	assert.Equal(t, 500, cfg.MaxChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 50, cfg.EmbedBatchSize)
	assert.Equal(t, 0.5, cfg.SimilarityThreshold)
	assert.Equal(t, 10, cfg.QueryTopK)
	assert.Equal(t, 3000, cfg.MaxContextTokens)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, "memory", cfg.VectorBackend)
}

func TestLoadConfig_Overrides(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-key")
	os.Setenv("EMBED_BATCH_SIZE", "10")
	os.Setenv("SIMILARITY_THRESHOLD", "0.7")
	os.Setenv("VECTOR_BACKEND", "qdrant")
	defer os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("EMBED_BATCH_SIZE")
	defer os.Unsetenv("SIMILARITY_THRESHOLD")
	defer os.Unsetenv("VECTOR_BACKEND")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 10, cfg.EmbedBatchSize)
	assert.Equal(t, 0.7, cfg.SimilarityThreshold)
	assert.Equal(t, "qdrant", cfg.VectorBackend)
}

func TestValidate_MissingGeminiKey(t *testing.T) {
	os.Setenv("AI_PROVIDER", "gemini")
	os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("AI_PROVIDER")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

func TestValidate_OllamaNeedsNoKey(t *testing.T) {
	os.Setenv("AI_PROVIDER", "ollama")
	defer os.Unsetenv("AI_PROVIDER")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AIProvider)
}

func TestValidate_UnknownBackend(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-key")
	os.Setenv("VECTOR_BACKEND", "pinecone")
	defer os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("VECTOR_BACKEND")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate_OverlapBound(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-key")
	os.Setenv("MAX_CHUNK_SIZE", "100")
	os.Setenv("CHUNK_OVERLAP", "100")
	defer os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("MAX_CHUNK_SIZE")
	defer os.Unsetenv("CHUNK_OVERLAP")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestExtensions(t *testing.T) {
	cfg := &config.Config{AllowedExtensions: ".pdf, MD,txt ,"}
	assert.Equal(t, []string{".pdf", ".md", ".txt"}, cfg.Extensions())
}
