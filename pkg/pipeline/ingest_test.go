package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/pkg/metastore"
	"github.com/xhad/scholar/pkg/processor"
)

type fakeExtractor struct {
	text string
	meta models.ExtractedMeta
	err  error
}

func (f *fakeExtractor) Extract([]byte) (string, models.ExtractedMeta, error) {
	return f.text, f.meta, f.err
}

type fakeEmbedder struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedTexts(context.Background(), []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, f.dim)
		vectors[i][0] = float32(i + 1)
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type fakeIndex struct {
	dim        int
	err        error
	entries    []models.IndexEntry
	queryHits  []models.RetrievalResult
	queryErr   error
	queries    int
	lastDocIDs []string
}

func (f *fakeIndex) Upsert(_ context.Context, entries []models.IndexEntry) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, entries...)
	return len(entries), nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, _ int, _ string, documentIDs []string) ([]models.RetrievalResult, error) {
	f.queries++
	f.lastDocIDs = documentIDs
	return f.queryHits, f.queryErr
}

func (f *fakeIndex) Delete(context.Context, string, string) error { return nil }
func (f *fakeIndex) Dimension() int                               { return f.dim }
func (f *fakeIndex) Close()                                       {}

type fakeObjects struct {
	data map[string][]byte
}

func (f *fakeObjects) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return data, nil
}

func (f *fakeObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[key] = data
	return nil
}

type fakeEnricher struct {
	result *models.Enrichment
	err    error
	calls  int
}

func (f *fakeEnricher) SearchByTitle(context.Context, string) (*models.Enrichment, error) {
	f.calls++
	return f.result, f.err
}

type ingestHarness struct {
	pipeline  *IngestionPipeline
	papers    *metastore.MemoryStore
	index     *fakeIndex
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	enricher  *fakeEnricher
}

func newIngestHarness(t *testing.T) *ingestHarness {
	t.Helper()
	h := &ingestHarness{
		papers: metastore.NewMemoryStore(),
		index:  &fakeIndex{dim: 4},
		extractor: &fakeExtractor{
			text: "First sentence of the paper. Second sentence with more detail.",
			meta: models.ExtractedMeta{Title: "Extracted Title", Authors: "Jane Doe", PageCount: 3},
		},
		embedder: &fakeEmbedder{dim: 4},
		enricher: &fakeEnricher{},
	}
	objects := &fakeObjects{data: map[string][]byte{"uploads/p1.pdf": []byte("%PDF-")}}

	p, err := NewIngestionPipeline(h.extractor, processor.New(), h.embedder, h.index, objects, h.papers, h.enricher)
	require.NoError(t, err)
	h.pipeline = p
	return h
}

func pendingPaper(t *testing.T, papers *metastore.MemoryStore) models.IngestRequest {
	t.Helper()
	req := models.IngestRequest{OwnerID: "alice", DocumentID: "p1", ObjectKey: "uploads/p1.pdf"}
	require.NoError(t, papers.CreatePaper(context.Background(), models.Paper{
		ID: req.DocumentID, OwnerID: req.OwnerID, ObjectKey: req.ObjectKey,
	}))
	return req
}

func TestNewIngestionPipeline_DimensionMismatch(t *testing.T) {
	_, err := NewIngestionPipeline(
		&fakeExtractor{}, processor.New(),
		&fakeEmbedder{dim: 768}, &fakeIndex{dim: 1536},
		&fakeObjects{}, metastore.NewMemoryStore(), nil)

	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, err.Error(), "768")
	assert.Contains(t, err.Error(), "1536")
}

func TestIngest_HappyPath(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)

	require.NoError(t, h.pipeline.Ingest(ctx, req))

	paper, err := h.papers.GetPaper(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, paper.Status)
	assert.Equal(t, "Extracted Title", paper.Title)
	assert.Equal(t, 3, paper.PageCount)

	require.NotEmpty(t, h.index.entries)
	for i, entry := range h.index.entries {
		assert.Equal(t, fmt.Sprintf("p1_%d", i), entry.ID)
		assert.Equal(t, "alice", entry.OwnerID)
		assert.Equal(t, "p1", entry.DocumentID)
		assert.Equal(t, i, entry.ChunkIndex)
		assert.Len(t, entry.Vector, 4)
	}
}

func TestIngest_MetadataOnlyUsesAbstract(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()

	req := models.IngestRequest{
		OwnerID:      "alice",
		DocumentID:   "p2",
		Title:        "An Imported Paper",
		MetadataOnly: true,
		Abstract:     "This abstract describes the imported paper in a single paragraph.",
	}
	require.NoError(t, h.papers.CreatePaper(ctx, models.Paper{ID: "p2", OwnerID: "alice"}))

	require.NoError(t, h.pipeline.Ingest(ctx, req))

	require.Len(t, h.index.entries, 1)
	assert.Contains(t, h.index.entries[0].Text, "This abstract describes")
	assert.Equal(t, "An Imported Paper", h.index.entries[0].Title)

	paper, err := h.papers.GetPaper(ctx, "alice", "p2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, paper.Status)
}

func TestIngest_MetadataOnlyWithoutAbstractFails(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()

	req := models.IngestRequest{OwnerID: "alice", DocumentID: "p3", MetadataOnly: true}
	require.NoError(t, h.papers.CreatePaper(ctx, models.Paper{ID: "p3", OwnerID: "alice"}))

	require.Error(t, h.pipeline.Ingest(ctx, req))

	paper, _ := h.papers.GetPaper(ctx, "alice", "p3")
	assert.Equal(t, models.StatusFailed, paper.Status)
}

func TestIngest_ExtractionFailureMarksFailed(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)
	h.extractor.err = fmt.Errorf("corrupt file")

	err := h.pipeline.Ingest(ctx, req)

	require.Error(t, err)
	paper, _ := h.papers.GetPaper(ctx, "alice", "p1")
	assert.Equal(t, models.StatusFailed, paper.Status)
	assert.Empty(t, h.index.entries)
}

func TestIngest_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)
	h.embedder.err = fmt.Errorf("embedding service down")

	err := h.pipeline.Ingest(ctx, req)

	require.Error(t, err)
	// The upsert is the commit point: nothing was written.
	assert.Empty(t, h.index.entries)
	paper, _ := h.papers.GetPaper(ctx, "alice", "p1")
	assert.Equal(t, models.StatusFailed, paper.Status)
}

func TestIngest_IndexFailureMarksFailed(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)
	h.index.err = fmt.Errorf("store unavailable")

	err := h.pipeline.Ingest(ctx, req)

	require.Error(t, err)
	paper, _ := h.papers.GetPaper(ctx, "alice", "p1")
	assert.Equal(t, models.StatusFailed, paper.Status)
}

func TestIngest_RedeliveryOfCompletedDocumentIsNoop(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)

	require.NoError(t, h.pipeline.Ingest(ctx, req))
	indexed := len(h.index.entries)

	// Second delivery of the same message must not re-process.
	require.NoError(t, h.pipeline.Ingest(ctx, req))
	assert.Equal(t, indexed, len(h.index.entries))
	assert.Equal(t, 1, h.embedder.calls)
}

func TestIngest_EnrichmentAppliedWhenFound(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)
	h.enricher.result = &models.Enrichment{
		Title:         "Canonical Title",
		Authors:       "Jane Doe, John Roe",
		Abstract:      "The canonical abstract.",
		Year:          2017,
		CitationCount: 1234,
		Venue:         "NeurIPS",
		DOI:           "10.1/abc",
	}

	require.NoError(t, h.pipeline.Ingest(ctx, req))

	paper, err := h.papers.GetPaper(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Canonical Title", paper.Title)
	assert.Equal(t, "Jane Doe, John Roe", paper.Authors)
	assert.Equal(t, 2017, paper.Year)
	assert.Equal(t, 1234, paper.CitationCount)
	assert.Equal(t, "NeurIPS", paper.Venue)

	// Indexed chunks carry the enriched title.
	assert.Equal(t, "Canonical Title", h.index.entries[0].Title)
}

func TestIngest_EnrichmentFailureDoesNotFailIngestion(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)
	h.enricher.err = fmt.Errorf("enrichment api down")

	require.NoError(t, h.pipeline.Ingest(ctx, req))

	paper, _ := h.papers.GetPaper(ctx, "alice", "p1")
	assert.Equal(t, models.StatusCompleted, paper.Status)
	assert.Equal(t, "Extracted Title", paper.Title)
}

func TestIngest_RequestMetadataWinsOverExtracted(t *testing.T) {
	h := newIngestHarness(t)
	ctx := context.Background()
	req := pendingPaper(t, h.papers)
	req.Title = "User Supplied Title"

	require.NoError(t, h.pipeline.Ingest(ctx, req))

	paper, _ := h.papers.GetPaper(ctx, "alice", "p1")
	assert.Equal(t, "User Supplied Title", paper.Title)
}

func TestIngest_MissingIdentifiers(t *testing.T) {
	h := newIngestHarness(t)

	err := h.pipeline.Ingest(context.Background(), models.IngestRequest{OwnerID: "alice"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}
