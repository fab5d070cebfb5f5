package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	reply    string
	err      error
	empty    bool
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "  " + m.reply + "\n"}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "offline", cfg: Config{Provider: ProviderOffline}},
		{name: "openai", cfg: Config{Provider: ProviderOpenAI, Host: "http://localhost:11434/v1", ChatModel: "gemma:7b", EmbeddingModel: "all-minilm"}},
		{name: "missing host", cfg: Config{ChatModel: "m", EmbeddingModel: "e"}, wantErr: true},
		{name: "bad host", cfg: Config{Host: "not a url", ChatModel: "m", EmbeddingModel: "e"}, wantErr: true},
		{name: "missing chat model", cfg: Config{Host: "http://x", EmbeddingModel: "e"}, wantErr: true},
		{name: "missing embedding model", cfg: Config{Host: "http://x", ChatModel: "m"}, wantErr: true},
		{name: "unknown provider", cfg: Config{Provider: "bard"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashEmbedderIsDeterministic(t *testing.T) {
	t.Parallel()

	e := NewHashEmbedder(64)
	ctx := context.Background()

	docs, err := e.EmbedDocuments(ctx, []string{"Opening hours are nine to five", "We sell red bicycles"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Len(t, docs[0], 64)

	again, err := e.EmbedQuery(ctx, "Opening hours are nine to five")
	require.NoError(t, err)
	assert.Equal(t, docs[0], again)

	blank, err := e.EmbedQuery(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, blank, 64)
}

func TestNewEmbedderOffline(t *testing.T) {
	t.Parallel()

	e, err := NewEmbedder(Config{Provider: ProviderOffline})
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	_, err = NewEmbedder(Config{})
	require.Error(t, err)
}

func TestAnswererBuildsGroundedPrompt(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "Of course! We open at nine."}
	a, err := NewAnswerer(model, 0, nil)
	require.NoError(t, err)

	got, err := a.Answer(context.Background(), "When do you open?",
		[]string{"Opening hours: 9-5"}, []string{"Hi", "Hello! How can I help?"})
	require.NoError(t, err)
	assert.Equal(t, "Of course! We open at nine.", got)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	system := model.messages[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, NoAnswer)
	human := model.messages[1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, human, "Opening hours: 9-5")
	assert.Contains(t, human, "Hello! How can I help?")
	assert.Contains(t, human, "USER'S QUESTION: When do you open?")
}

func TestAnswererErrors(t *testing.T) {
	t.Parallel()

	_, err := NewAnswerer(nil, 0, nil)
	require.Error(t, err)

	a, err := NewAnswerer(&fakeModel{err: errors.New("boom")}, 0, nil)
	require.NoError(t, err)
	_, err = a.Answer(context.Background(), "q", nil, nil)
	require.Error(t, err)

	a, err = NewAnswerer(&fakeModel{empty: true}, 0, nil)
	require.NoError(t, err)
	got, err := a.Answer(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)
}

func TestExtractive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	contexts := []string{"We sell red bicycles and helmets.", "Opening hours are nine to five on weekdays."}

	got, err := Extractive{}.Answer(ctx, "What are the opening hours?", contexts, nil)
	require.NoError(t, err)
	assert.Equal(t, contexts[1], got)

	got, err = Extractive{}.Answer(ctx, "Do you ship to Mars?", contexts, nil)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)
}

func TestNewAnswerGeneratorOffline(t *testing.T) {
	t.Parallel()

	g, err := NewAnswerGenerator(Config{Provider: ProviderOffline}, nil)
	require.NoError(t, err)
	assert.IsType(t, Extractive{}, g)
}
