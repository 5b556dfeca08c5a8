package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbeddingError marks a batch that could not be embedded. The document it
// belongs to must not be indexed.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s embedding failed: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// embeddingClient is the slice of the langchaingo model surface the embedder
// needs, satisfied by both openai.LLM and ollama.LLM.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig selects an embedding provider and model. Dimension must
// match the model's output; the index it feeds is validated against it.
type EmbedderConfig struct {
	Provider  string // "openai" or "ollama"
	Model     string
	Dimension int
	BaseURL   string // Ollama server URL
	APIKey    string // OpenAI key
	BatchSize int
	Retry     RetryPolicy
}

// Embedder turns text into vectors through a configured provider, batching
// requests and retrying rate limits.
type Embedder struct {
	config EmbedderConfig
	client embeddingClient
}

// NewEmbedderWithConfig creates an Embedder with the given configuration.
func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}

	var client embeddingClient
	var err error

	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		if config.Dimension == 0 {
			config.Dimension = 1536
		}
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.Dimension == 0 {
			config.Dimension = 768
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		client, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %v", err)
	}

	return &Embedder{config: config, client: client}, nil
}

// NewEmbedderWithClient wires in an existing client; used by tests.
func NewEmbedderWithClient(config EmbedderConfig, client embeddingClient) *Embedder {
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}
	return &Embedder{config: config, client: client}
}

func (e *Embedder) Dimension() int { return e.config.Dimension }

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a slice of texts, preserving order. Requests go out in
// batches; a batch that still fails after retries fails the whole call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var result [][]float32
		err := e.config.Retry.Do(ctx, func() error {
			var embedErr error
			result, embedErr = e.client.CreateEmbedding(ctx, batch)
			return embedErr
		})
		if err != nil {
			if _, ok := err.(*RateLimitError); ok {
				return nil, err
			}
			return nil, &EmbeddingError{Provider: e.config.Provider, Err: err}
		}
		if len(result) != len(batch) {
			return nil, &EmbeddingError{
				Provider: e.config.Provider,
				Err:      fmt.Errorf("got %d embeddings for %d texts", len(result), len(batch)),
			}
		}
		for _, vec := range result {
			if e.config.Dimension > 0 && len(vec) != e.config.Dimension {
				return nil, &EmbeddingError{
					Provider: e.config.Provider,
					Err:      fmt.Errorf("got %d-dimensional vector, expected %d", len(vec), e.config.Dimension),
				}
			}
		}
		vectors = append(vectors, result...)
	}

	return vectors, nil
}
