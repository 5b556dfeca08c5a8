package rag

import (
	"context"
	"fmt"
	"log"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/internal/types"
)

type RetrieverConfig struct {
	TopK int
}

// Retriever embeds a question once and runs a namespace-scoped similarity
// search. An index failure degrades to zero results so the caller can still
// answer with a fallback; an embedding failure is fatal because nothing can
// be searched without a query vector.
type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	index    types.VectorIndex
}

func NewRetriever(config RetrieverConfig, embedder types.Embedder, index types.VectorIndex) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	return &Retriever{config: config, embedder: embedder, index: index}
}

// Retrieve returns up to TopK chunks for the question within the owner's
// namespace. A non-nil empty allowedDocIDs means no papers are selected: the
// index is not queried at all.
func (r *Retriever) Retrieve(ctx context.Context, ownerID, question string, allowedDocIDs []string) ([]models.RetrievalResult, error) {
	if allowedDocIDs != nil && len(allowedDocIDs) == 0 {
		return nil, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := r.index.Query(ctx, vector, r.config.TopK, ownerID, allowedDocIDs)
	if err != nil {
		log.Printf("retrieval query failed for owner %s: %v", ownerID, err)
		return nil, nil
	}

	return results, nil
}
