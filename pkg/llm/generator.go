package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/scholar/internal/models"
)

// GeneratorConfig selects a chat provider and model.
type GeneratorConfig struct {
	Provider    string // "openai" or "ollama"
	Model       string
	BaseURL     string // Ollama server URL
	APIKey      string // OpenAI key
	MaxTokens   int
	Temperature float64
	Retry       RetryPolicy
}

// Generator produces answers through a configured chat model, retrying rate
// limits with the same policy as the embedder.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
}

// NewGeneratorWithConfig creates a Generator with the given configuration.
func NewGeneratorWithConfig(config GeneratorConfig) (*Generator, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}

	var model llms.Model
	var err error

	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %v", err)
	}

	return &Generator{config: config, llm: model}, nil
}

// NewGeneratorWithModel wires in an existing model; used by tests.
func NewGeneratorWithModel(config GeneratorConfig, model llms.Model) *Generator {
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}
	return &Generator{config: config, llm: model}
}

// Generate answers a single prompt under the given system prompt. Zero
// maxTokens and negative temperature fall back to the configured defaults.
func (g *Generator) Generate(ctx context.Context, prompt, system string, maxTokens int, temperature float64) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
	return g.complete(ctx, content, maxTokens, temperature)
}

// Chat answers the last message of a conversation, carrying prior turns as
// context.
func (g *Generator) Chat(ctx context.Context, messages []models.ChatMessage, system string, maxTokens int, temperature float64) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
	}
	for _, msg := range messages {
		role := schema.ChatMessageTypeHuman
		if msg.Role == "assistant" {
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return g.complete(ctx, content, maxTokens, temperature)
}

func (g *Generator) complete(ctx context.Context, content []llms.MessageContent, maxTokens int, temperature float64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = g.config.MaxTokens
	}
	if temperature < 0 {
		temperature = g.config.Temperature
	}

	var response *llms.ContentResponse
	err := g.config.Retry.Do(ctx, func() error {
		var genErr error
		response, genErr = g.llm.GenerateContent(ctx, content,
			llms.WithMaxTokens(maxTokens),
			llms.WithTemperature(temperature))
		return genErr
	})
	if err != nil {
		return "", err
	}
	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return response.Choices[0].Content, nil
}
