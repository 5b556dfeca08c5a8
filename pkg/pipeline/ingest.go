package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/internal/types"
	"github.com/xhad/scholar/pkg/metastore"
	"github.com/xhad/scholar/pkg/processor"
)

// IngestionPipeline turns one document into indexed chunks: extract, clean,
// chunk, embed, upsert. The vector upsert is the commit point; a failure
// before it leaves no persisted side effect beyond the paper's failed status.
type IngestionPipeline struct {
	extractor types.Extractor
	chunker   types.Chunker
	embedder  types.Embedder
	index     types.VectorIndex
	objects   types.ObjectStore
	papers    types.PaperStore
	enricher  types.Enricher // optional
}

func NewIngestionPipeline(
	extractor types.Extractor,
	chunker types.Chunker,
	embedder types.Embedder,
	index types.VectorIndex,
	objects types.ObjectStore,
	papers types.PaperStore,
	enricher types.Enricher,
) (*IngestionPipeline, error) {
	if err := checkDimensions(embedder.Dimension(), index.Dimension()); err != nil {
		return nil, err
	}
	return &IngestionPipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		objects:   objects,
		papers:    papers,
		enricher:  enricher,
	}, nil
}

// Ingest processes one document end to end. Any error marks the paper failed
// and is returned so the queue can decide on redelivery. Redelivery of an
// already-completed document is a no-op success.
func (p *IngestionPipeline) Ingest(ctx context.Context, req models.IngestRequest) error {
	if req.OwnerID == "" || req.DocumentID == "" {
		return fmt.Errorf("ingest request missing owner or document id")
	}

	if err := p.papers.UpdateStatus(ctx, req.OwnerID, req.DocumentID, models.StatusProcessing); err != nil {
		if errors.Is(err, metastore.ErrTerminalState) {
			log.Printf("document %s already in a terminal state, skipping", req.DocumentID)
			return nil
		}
		return fmt.Errorf("failed to claim document %s: %w", req.DocumentID, err)
	}

	text, meta, err := p.resolveText(ctx, req)
	if err != nil {
		p.markFailed(ctx, req)
		return err
	}

	cleaned := processor.CleanText(text)
	chunks := p.chunker.Chunk(cleaned)
	if len(chunks) == 0 {
		p.markFailed(ctx, req)
		return fmt.Errorf("document %s produced no chunks", req.DocumentID)
	}

	meta = p.enrich(ctx, req, meta)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		p.markFailed(ctx, req)
		return fmt.Errorf("failed to embed document %s: %w", req.DocumentID, err)
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = models.IndexEntry{
			ID:         fmt.Sprintf("%s_%d", req.DocumentID, chunk.Index),
			OwnerID:    req.OwnerID,
			DocumentID: req.DocumentID,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
			Title:      meta.Title,
			Authors:    meta.Authors,
			Vector:     vectors[i],
		}
	}

	if _, err := p.index.Upsert(ctx, entries); err != nil {
		p.markFailed(ctx, req)
		return fmt.Errorf("failed to index document %s: %w", req.DocumentID, err)
	}

	if err := p.papers.UpdateStatus(ctx, req.OwnerID, req.DocumentID, models.StatusCompleted); err != nil {
		log.Printf("failed to mark document %s completed: %v", req.DocumentID, err)
	}
	return nil
}

// resolveText produces the text to chunk. Metadata-only papers use their
// abstract; everything else is fetched from the object store and extracted.
func (p *IngestionPipeline) resolveText(ctx context.Context, req models.IngestRequest) (string, models.ExtractedMeta, error) {
	meta := models.ExtractedMeta{Title: req.Title, Authors: req.Authors}

	if req.MetadataOnly {
		if strings.TrimSpace(req.Abstract) == "" {
			return "", meta, fmt.Errorf("metadata-only document %s has no abstract", req.DocumentID)
		}
		return req.Abstract, meta, nil
	}

	raw, err := p.objects.Get(ctx, req.ObjectKey)
	if err != nil {
		return "", meta, fmt.Errorf("failed to fetch document %s: %w", req.DocumentID, err)
	}

	text, extracted, err := p.extractor.Extract(raw)
	if err != nil {
		return "", meta, fmt.Errorf("failed to extract document %s: %w", req.DocumentID, err)
	}

	// Request-supplied metadata wins over extracted guesses.
	if meta.Title == "" {
		meta.Title = extracted.Title
	}
	if meta.Authors == "" {
		meta.Authors = extracted.Authors
	}
	meta.PageCount = extracted.PageCount
	return text, meta, nil
}

// enrich merges external metadata into the paper record. Lookups are
// opportunistic: failures are logged and never fail ingestion.
func (p *IngestionPipeline) enrich(ctx context.Context, req models.IngestRequest, meta models.ExtractedMeta) models.ExtractedMeta {
	update := models.PaperUpdate{}
	if meta.Title != "" {
		update.Title = &meta.Title
	}
	if meta.Authors != "" {
		update.Authors = &meta.Authors
	}
	if meta.PageCount > 0 {
		update.PageCount = &meta.PageCount
	}

	if p.enricher != nil && meta.Title != "" {
		found, err := p.enricher.SearchByTitle(ctx, meta.Title)
		if err != nil {
			log.Printf("metadata enrichment failed for %s: %v", req.DocumentID, err)
		} else if found != nil {
			if found.Title != "" {
				meta.Title = found.Title
				update.Title = &found.Title
			}
			if found.Authors != "" {
				meta.Authors = found.Authors
				update.Authors = &found.Authors
			}
			if found.Abstract != "" {
				update.Abstract = &found.Abstract
			}
			if found.Year != 0 {
				update.Year = &found.Year
			}
			if found.Venue != "" {
				update.Venue = &found.Venue
			}
			if found.DOI != "" {
				update.DOI = &found.DOI
			}
			update.CitationCount = &found.CitationCount
		}
	}

	if err := p.papers.UpdateMetadata(ctx, req.OwnerID, req.DocumentID, update); err != nil {
		log.Printf("failed to update metadata for %s: %v", req.DocumentID, err)
	}
	return meta
}

func (p *IngestionPipeline) markFailed(ctx context.Context, req models.IngestRequest) {
	if err := p.papers.UpdateStatus(ctx, req.OwnerID, req.DocumentID, models.StatusFailed); err != nil {
		log.Printf("failed to mark document %s failed: %v", req.DocumentID, err)
	}
}
