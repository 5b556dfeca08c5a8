package types

import (
	"context"

	"github.com/xhad/scholar/internal/models"
)

// Extractor turns raw PDF bytes into plain text plus best-effort metadata.
type Extractor interface {
	Extract(raw []byte) (string, models.ExtractedMeta, error)
}

// Chunker splits cleaned text into ordered, overlapping segments.
type Chunker interface {
	Chunk(text string) []models.Chunk
}

// Embedder maps text to fixed-dimension vectors. EmbedTexts preserves input
// order exactly. Implementations fail fast; retrying is the caller's decision.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Generator wraps a text-generation provider. Both methods share one
// retry-with-backoff policy for rate-limit errors.
type Generator interface {
	Generate(ctx context.Context, prompt, system string, maxTokens int, temperature float64) (string, error)
	Chat(ctx context.Context, messages []models.ChatMessage, system string, maxTokens int, temperature float64) (string, error)
}

// VectorIndex stores chunk vectors under a per-owner namespace. Upsert returns
// the number of entries applied before any failure. Query never returns
// entries from outside the given namespace; documentIDs narrows results to a
// set of papers when non-nil.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []models.IndexEntry) (int, error)
	Query(ctx context.Context, vector []float32, k int, namespace string, documentIDs []string) ([]models.RetrievalResult, error)
	Delete(ctx context.Context, documentID, namespace string) error
	Dimension() int
	Close()
}

// ObjectStore holds raw document bytes keyed by opaque keys.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// PaperStore persists structured paper records. UpdateStatus refuses to move a
// paper out of a terminal state.
type PaperStore interface {
	CreatePaper(ctx context.Context, paper models.Paper) error
	GetPaper(ctx context.Context, ownerID, documentID string) (models.Paper, error)
	UpdateStatus(ctx context.Context, ownerID, documentID, status string) error
	UpdateMetadata(ctx context.Context, ownerID, documentID string, update models.PaperUpdate) error
}

// Enricher looks up external paper metadata by title. A nil result with nil
// error means "not found"; callers treat failures as a skipped enrichment,
// never as an ingestion failure.
type Enricher interface {
	SearchByTitle(ctx context.Context, title string) (*models.Enrichment, error)
}
