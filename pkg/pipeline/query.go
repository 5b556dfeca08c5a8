package pipeline

import (
	"context"
	"fmt"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/internal/types"
	"github.com/xhad/scholar/pkg/llm"
	"github.com/xhad/scholar/pkg/rag"
)

// FallbackAnswer is returned when retrieval finds nothing to ground an
// answer on.
const FallbackAnswer = "I couldn't find relevant information in the selected papers to answer your question."

type QueryConfig struct {
	TopK            int
	MaxContextChars int
	MaxTokens       int
	Temperature     float64
}

// QueryPipeline answers one question: retrieve scoped chunks, assemble cited
// context, generate a grounded answer. It never mutates persisted state.
type QueryPipeline struct {
	config    QueryConfig
	retriever *rag.Retriever
	assembler *rag.ContextAssembler
	generator types.Generator
}

func NewQueryPipeline(config QueryConfig, embedder types.Embedder, index types.VectorIndex, generator types.Generator) (*QueryPipeline, error) {
	if err := checkDimensions(embedder.Dimension(), index.Dimension()); err != nil {
		return nil, err
	}
	return &QueryPipeline{
		config:    config,
		retriever: rag.NewRetriever(rag.RetrieverConfig{TopK: config.TopK}, embedder, index),
		assembler: rag.NewAssembler(rag.AssemblerConfig{MaxContextChars: config.MaxContextChars}),
		generator: generator,
	}, nil
}

// Answer produces a grounded answer with citations. No retrieved context
// yields the fallback answer and an empty source list rather than an error;
// generation failures propagate so callers can distinguish rate limiting.
func (p *QueryPipeline) Answer(ctx context.Context, req models.QuestionRequest) (models.Answer, error) {
	if req.OwnerID == "" {
		return models.Answer{}, fmt.Errorf("question request missing owner id")
	}

	results, err := p.retriever.Retrieve(ctx, req.OwnerID, req.Question, req.AllowedDocumentIDs)
	if err != nil {
		return models.Answer{}, err
	}
	if len(results) == 0 {
		return models.Answer{Text: FallbackAnswer, Citations: []models.Citation{}}, nil
	}

	contextText, citations := p.assembler.Assemble(results)
	prompt := llm.BuildRAGPrompt(contextText, req.Question)

	var text string
	if len(req.History) > 0 {
		messages := append(append([]models.ChatMessage{}, req.History...),
			models.ChatMessage{Role: "user", Content: prompt})
		text, err = p.generator.Chat(ctx, messages, llm.RAGSystemPrompt, p.config.MaxTokens, p.config.Temperature)
	} else {
		text, err = p.generator.Generate(ctx, prompt, llm.RAGSystemPrompt, p.config.MaxTokens, p.config.Temperature)
	}
	if err != nil {
		return models.Answer{}, err
	}

	return models.Answer{Text: text, Citations: citations}, nil
}
