// Package app wires configuration into running pipelines. The CLI and the
// WebSocket server both build from here so component construction and the
// dimension checks live in one place.
package app

import (
	"fmt"

	"github.com/xhad/scholar/internal/types"
	"github.com/xhad/scholar/pkg/config"
	"github.com/xhad/scholar/pkg/enrich"
	"github.com/xhad/scholar/pkg/extractor"
	"github.com/xhad/scholar/pkg/importer"
	"github.com/xhad/scholar/pkg/llm"
	"github.com/xhad/scholar/pkg/metastore"
	"github.com/xhad/scholar/pkg/objstore"
	"github.com/xhad/scholar/pkg/pipeline"
	"github.com/xhad/scholar/pkg/processor"
	"github.com/xhad/scholar/pkg/store"
)

type App struct {
	Config    *config.Config
	Papers    types.PaperStore
	Objects   types.ObjectStore
	Index     types.VectorIndex
	Embedder  types.Embedder
	Generator types.Generator
	Arxiv     *importer.Arxiv
	Ingestion *pipeline.IngestionPipeline
	Query     *pipeline.QueryPipeline
}

// New builds every component from a validated configuration.
func New(cfg *config.Config) (*App, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs[0])
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %v", err)
	}

	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Provider:    cfg.Generation.Provider,
		Model:       cfg.Generation.Model,
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.Generation.APIKey,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %v", err)
	}

	index, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}

	papers, err := newPaperStore(cfg)
	if err != nil {
		index.Close()
		return nil, err
	}

	objects, err := objstore.NewFileStore(cfg.Objects.Root)
	if err != nil {
		index.Close()
		return nil, err
	}

	chunker := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:        cfg.Processor.ChunkSize,
		ChunkOverlap:     cfg.Processor.ChunkOverlap,
		RespectSentences: cfg.Processor.RespectSentences,
		BoundaryBack:     cfg.Processor.BoundaryBack,
		BoundaryForward:  cfg.Processor.BoundaryForward,
		BoundarySlack:    cfg.Processor.BoundarySlack,
	})

	var enricher types.Enricher
	if cfg.Enrichment.Enabled {
		enricher = enrich.NewSemanticScholarWithConfig(enrich.SemanticScholarConfig{
			APIKey:         cfg.Enrichment.APIKey,
			RequestsPerSec: cfg.Enrichment.RequestsPerSec,
		})
	}

	ingestion, err := pipeline.NewIngestionPipeline(
		extractor.New(), chunker, embedder, index, objects, papers, enricher)
	if err != nil {
		index.Close()
		return nil, err
	}

	query, err := pipeline.NewQueryPipeline(pipeline.QueryConfig{
		TopK:            cfg.Query.TopK,
		MaxContextChars: cfg.Query.MaxContextChars,
		MaxTokens:       cfg.Generation.MaxTokens,
		Temperature:     cfg.Generation.Temperature,
	}, embedder, index, generator)
	if err != nil {
		index.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Papers:    papers,
		Objects:   objects,
		Index:     index,
		Embedder:  embedder,
		Generator: generator,
		Arxiv:     importer.NewArxivWithConfig(importer.ArxivConfig{}),
		Ingestion: ingestion,
		Query:     query,
	}, nil
}

func newIndex(cfg *config.Config) (types.VectorIndex, error) {
	switch cfg.Index.Backend {
	case "pgvector":
		return store.NewPgVectorWithConfig(store.PgVectorConfig{
			ConnString: cfg.Index.URL,
			TableName:  cfg.Index.TableName,
			VectorDim:  cfg.Embedding.Dimension,
			BatchSize:  cfg.Index.BatchSize,
		})
	default:
		return store.NewChromemWithConfig(store.ChromemConfig{
			Path:      cfg.Index.Path,
			VectorDim: cfg.Embedding.Dimension,
		})
	}
}

func newPaperStore(cfg *config.Config) (types.PaperStore, error) {
	if cfg.Database.URL == "" {
		return metastore.NewMemoryStore(), nil
	}
	return metastore.NewPostgresWithConfig(metastore.PostgresConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
	})
}

func (a *App) Close() {
	if a.Index != nil {
		a.Index.Close()
	}
	if pg, ok := a.Papers.(*metastore.PostgresStore); ok {
		pg.Close()
	}
}
