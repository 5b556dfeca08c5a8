package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedding:
  provider: "openai"
  model: "text-embedding-3-small"
  dimension: 1536

generation:
  provider: "openai"
  model: "gpt-4o-mini"
  max_tokens: 500
  temperature: 0.2

index:
  backend: "pgvector"
  url: "postgres://localhost:5432/scholar"
  table_name: "paper_chunks"

processor:
  chunk_size: 500
  chunk_overlap: 100
  respect_sentences: false

query:
  top_k: 8
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", config.Embedding.Provider)
	assert.Equal(t, 1536, config.Embedding.Dimension)
	assert.Equal(t, "gpt-4o-mini", config.Generation.Model)
	assert.Equal(t, 500, config.Generation.MaxTokens)
	assert.Equal(t, "pgvector", config.Index.Backend)
	assert.Equal(t, "paper_chunks", config.Index.TableName)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 8, config.Query.TopK)

	// An explicit false in the file overrides the true default.
	assert.False(t, config.Processor.RespectSentences)

	// Unset sections keep their defaults.
	assert.Equal(t, 8000, config.Query.MaxContextChars)
	assert.Equal(t, 3, config.Queue.MaxDeliveries)
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, config)

	config = &Config{}
	applyDefaults(config)

	assert.Equal(t, "ollama", config.Embedding.Provider)
	assert.Equal(t, 768, config.Embedding.Dimension)
	assert.True(t, config.Processor.RespectSentences)
	assert.Equal(t, 200, config.Processor.BoundaryBack)
	assert.Equal(t, "chromem", config.Index.Backend)
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	os.Setenv("DATABASE_URL", "postgres://env-db:5432/scholar")
	os.Setenv("SEMANTIC_SCHOLAR_API_KEY", "ss-key")
	defer func() {
		os.Unsetenv("OLLAMA_BASE_URL")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("SEMANTIC_SCHOLAR_API_KEY")
	}()

	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.Embedding.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Generation.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/scholar", config.Database.URL)
	assert.Equal(t, "ss-key", config.Enrichment.APIKey)
}

func TestConfigValidation(t *testing.T) {
	valid := &Config{}
	applyDefaults(valid)
	assert.Empty(t, valid.Validate())

	invalid := &Config{}
	applyDefaults(invalid)
	invalid.Embedding.Provider = "cohere"
	invalid.Embedding.Dimension = 0
	invalid.Generation.Temperature = 1.5
	invalid.Index.Backend = "pinecone"
	invalid.Processor.ChunkOverlap = 2000

	errs := invalid.Validate()
	require.Len(t, errs, 5)

	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Contains(t, fields, "embedding.provider")
	assert.Contains(t, fields, "embedding.dimension")
	assert.Contains(t, fields, "generation.temperature")
	assert.Contains(t, fields, "index.backend")
	assert.Contains(t, fields, "processor.chunk_overlap")
}
