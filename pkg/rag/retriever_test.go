package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/scholar/internal/models"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	s.calls++
	return s.vector, s.err
}

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = s.vector
	}
	return vectors, s.err
}

func (s *stubEmbedder) Dimension() int { return len(s.vector) }

type stubIndex struct {
	results       []models.RetrievalResult
	err           error
	queries       int
	lastNamespace string
	lastDocIDs    []string
	lastK         int
}

func (s *stubIndex) Upsert(context.Context, []models.IndexEntry) (int, error) { return 0, nil }

func (s *stubIndex) Query(_ context.Context, _ []float32, k int, namespace string, documentIDs []string) ([]models.RetrievalResult, error) {
	s.queries++
	s.lastNamespace = namespace
	s.lastDocIDs = documentIDs
	s.lastK = k
	return s.results, s.err
}

func (s *stubIndex) Delete(context.Context, string, string) error { return nil }
func (s *stubIndex) Dimension() int                               { return 4 }
func (s *stubIndex) Close()                                       {}

func TestRetrieve_QueriesWithinNamespace(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0, 0, 0}}
	index := &stubIndex{results: []models.RetrievalResult{{DocumentID: "p1", Score: 0.9}}}
	r := NewRetriever(RetrieverConfig{TopK: 7}, embedder, index)

	results, err := r.Retrieve(context.Background(), "alice", "what is attention?", nil)

	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, "alice", index.lastNamespace)
	assert.Equal(t, 7, index.lastK)
	assert.Nil(t, index.lastDocIDs)
}

func TestRetrieve_EmptyAllowedSetShortCircuits(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0, 0, 0}}
	index := &stubIndex{}
	r := NewRetriever(RetrieverConfig{}, embedder, index)

	results, err := r.Retrieve(context.Background(), "alice", "anything", []string{})

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, embedder.calls)
	assert.Equal(t, 0, index.queries)
}

func TestRetrieve_PassesDocumentFilter(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0, 0, 0}}
	index := &stubIndex{}
	r := NewRetriever(RetrieverConfig{}, embedder, index)

	_, err := r.Retrieve(context.Background(), "alice", "question", []string{"p1", "p2"})

	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, index.lastDocIDs)
}

func TestRetrieve_EmbeddingFailureIsFatal(t *testing.T) {
	embedder := &stubEmbedder{err: fmt.Errorf("embedding service down")}
	index := &stubIndex{}
	r := NewRetriever(RetrieverConfig{}, embedder, index)

	_, err := r.Retrieve(context.Background(), "alice", "question", nil)

	require.Error(t, err)
	assert.Equal(t, 0, index.queries)
}

func TestRetrieve_IndexFailureDegradesToEmpty(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0, 0, 0}}
	index := &stubIndex{err: fmt.Errorf("index unavailable")}
	r := NewRetriever(RetrieverConfig{}, embedder, index)

	results, err := r.Retrieve(context.Background(), "alice", "question", nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}
