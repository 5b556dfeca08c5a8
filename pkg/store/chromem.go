package store

import (
	"context"
	"fmt"
	"math"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/xhad/scholar/internal/models"
)

type ChromemConfig struct {
	Path      string // empty means in-memory only
	Compress  bool
	VectorDim int
}

// ChromemIndex is an embedded vector index with one collection per namespace.
// It needs no external service, which makes it the default for local runs and
// tests; the pgvector index is the production counterpart.
type ChromemIndex struct {
	config ChromemConfig
	db     *chromem.DB
}

func NewChromemWithConfig(config ChromemConfig) (*ChromemIndex, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	var db *chromem.DB
	var err error
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %v", err)
		}
	}

	return &ChromemIndex{config: config, db: db}, nil
}

func (idx *ChromemIndex) Dimension() int { return idx.config.VectorDim }

// Embeddings always arrive precomputed; the collection's embedding function
// must never run.
func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("collection requires precomputed embeddings")
}

func (idx *ChromemIndex) collection(namespace string) (*chromem.Collection, error) {
	return idx.db.GetOrCreateCollection("papers_"+namespace, nil, rejectEmbedding)
}

// Upsert writes entries grouped by namespace. Returns the number of entries
// applied before any failure.
func (idx *ChromemIndex) Upsert(ctx context.Context, entries []models.IndexEntry) (int, error) {
	byNamespace := make(map[string][]models.IndexEntry)
	var order []string
	for _, entry := range entries {
		if _, seen := byNamespace[entry.OwnerID]; !seen {
			order = append(order, entry.OwnerID)
		}
		byNamespace[entry.OwnerID] = append(byNamespace[entry.OwnerID], entry)
	}

	applied := 0
	for _, namespace := range order {
		group := byNamespace[namespace]

		coll, err := idx.collection(namespace)
		if err != nil {
			return applied, &IndexError{Op: "upsert", Err: err}
		}

		docs := make([]chromem.Document, 0, len(group))
		for _, entry := range group {
			if len(entry.Vector) != idx.config.VectorDim {
				return applied, &IndexError{
					Op: "upsert",
					Err: fmt.Errorf("entry %s has %d-dimensional vector, index expects %d",
						entry.ID, len(entry.Vector), idx.config.VectorDim),
				}
			}
			docs = append(docs, chromem.Document{
				ID:        entry.ID,
				Content:   entry.Text,
				Embedding: normalize(entry.Vector),
				Metadata: map[string]string{
					"document_id": entry.DocumentID,
					"chunk_index": strconv.Itoa(entry.ChunkIndex),
					"title":       entry.Title,
					"authors":     entry.Authors,
				},
			})
		}

		if err := coll.AddDocuments(ctx, docs, 1); err != nil {
			return applied, &IndexError{Op: "upsert", Err: err}
		}
		applied += len(group)
	}

	return applied, nil
}

// Query returns the k nearest chunks within a namespace. A single-document
// filter is pushed into the store; larger filters are applied on the results
// because the store only matches one metadata value per key.
func (idx *ChromemIndex) Query(ctx context.Context, vector []float32, k int, namespace string, documentIDs []string) ([]models.RetrievalResult, error) {
	if documentIDs != nil && len(documentIDs) == 0 {
		return nil, nil
	}

	coll := idx.db.GetCollection("papers_"+namespace, rejectEmbedding)
	if coll == nil || coll.Count() == 0 {
		return nil, nil
	}

	var where map[string]string
	n := k
	if len(documentIDs) == 1 {
		where = map[string]string{"document_id": documentIDs[0]}
	} else if len(documentIDs) > 1 {
		// Over-fetch, then keep only the allowed documents.
		n = coll.Count()
	}
	if n > coll.Count() {
		n = coll.Count()
	}

	hits, err := coll.QueryEmbedding(ctx, normalize(vector), n, where, nil)
	if err != nil {
		return nil, &IndexError{Op: "query", Err: err}
	}

	allowed := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = true
	}

	var results []models.RetrievalResult
	for _, hit := range hits {
		docID := hit.Metadata["document_id"]
		if len(documentIDs) > 1 && !allowed[docID] {
			continue
		}
		chunkIndex, _ := strconv.Atoi(hit.Metadata["chunk_index"])
		results = append(results, models.RetrievalResult{
			ChunkID:    hit.ID,
			DocumentID: docID,
			ChunkIndex: chunkIndex,
			Text:       hit.Content,
			Score:      hit.Similarity,
			Title:      hit.Metadata["title"],
			Authors:    hit.Metadata["authors"],
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Delete removes every chunk of a document from a namespace.
func (idx *ChromemIndex) Delete(ctx context.Context, documentID, namespace string) error {
	coll := idx.db.GetCollection("papers_"+namespace, rejectEmbedding)
	if coll == nil {
		return nil
	}
	if err := coll.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return &IndexError{Op: "delete", Err: err}
	}
	return nil
}

func (idx *ChromemIndex) Close() {}

// normalize scales a vector to unit length; the embedded store assumes
// normalized vectors for cosine similarity.
func normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = v / norm
	}
	return out
}
