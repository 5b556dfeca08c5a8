package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/scholar/internal/models"
)

type fakeModel struct {
	response  string
	err       error
	failTimes int
	calls     int
	lastMsgs  []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.lastMsgs = messages
	if f.calls <= f.failTimes {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return f.response, f.err
}

func TestGenerate_SendsSystemAndUserMessages(t *testing.T) {
	model := &fakeModel{response: "The answer [Source 1]."}
	g := NewGeneratorWithModel(GeneratorConfig{Retry: testRetry()}, model)

	answer, err := g.Generate(context.Background(), "user prompt", "system prompt", 500, 0.2)

	require.NoError(t, err)
	assert.Equal(t, "The answer [Source 1].", answer)
	require.Len(t, model.lastMsgs, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.lastMsgs[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.lastMsgs[1].Role)
}

func TestGenerate_RetriesRateLimitUpToBound(t *testing.T) {
	model := &fakeModel{failTimes: 10, err: fmt.Errorf("rate limit reached")}
	g := NewGeneratorWithModel(GeneratorConfig{Retry: testRetry()}, model)

	_, err := g.Generate(context.Background(), "prompt", "system", 0, -1)

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 3, model.calls)
}

func TestGenerate_NonRateLimitPropagatesImmediately(t *testing.T) {
	model := &fakeModel{failTimes: 10, err: fmt.Errorf("context length exceeded")}
	g := NewGeneratorWithModel(GeneratorConfig{Retry: testRetry()}, model)

	_, err := g.Generate(context.Background(), "prompt", "system", 0, -1)

	require.Error(t, err)
	var rateErr *RateLimitError
	assert.False(t, errors.As(err, &rateErr))
	assert.Equal(t, 1, model.calls)
}

func TestChat_MapsRoles(t *testing.T) {
	model := &fakeModel{response: "follow-up answer"}
	g := NewGeneratorWithModel(GeneratorConfig{Retry: testRetry()}, model)

	history := []models.ChatMessage{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
	}
	answer, err := g.Chat(context.Background(), history, "system prompt", 0, -1)

	require.NoError(t, err)
	assert.Equal(t, "follow-up answer", answer)
	require.Len(t, model.lastMsgs, 4)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.lastMsgs[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.lastMsgs[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, model.lastMsgs[2].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.lastMsgs[3].Role)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	model := &emptyModel{}
	g := NewGeneratorWithModel(GeneratorConfig{Retry: testRetry()}, model)

	_, err := g.Generate(context.Background(), "prompt", "system", 0, -1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}
