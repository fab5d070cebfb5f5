package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/index"
)

// NoAnswer is the reply when the context does not cover the question.
const NoAnswer = "That's a great question, but I don't have that information in the provided documents."

const systemPrompt = `You are "Athena," a friendly, enthusiastic, and highly intelligent AI assistant. Your primary goal is to provide helpful, well-structured, and engaging answers based ONLY on the context provided from a scraped website and the previous chat history.

Your Core Instructions:
1. Greeting: Always start your response with a warm, positive greeting like "Of course!", "Absolutely!", or "I'd be happy to help with that!".
2. Formatting: Use Markdown. Use **bold text** for headings and important keywords, bullet points (*) for lists, and relevant emojis.
3. Synthesize, Don't Just Quote: Combine information from the context into a complete, easy-to-read answer.
4. Use Chat History: If the user asks a follow-up question, refer to the previous conversation.
5. Stay Grounded: If the answer is not in the provided context, you MUST respond with: "` + NoAnswer + `" Do not use external knowledge.
6. Closing: Always end with a friendly, open-ended question such as "Is there anything else I can help you with?".`

// Answerer generates grounded answers with a chat model.
type Answerer struct {
	model       llms.Model
	temperature float64
	logger      *zap.Logger
}

// NewAnswerer wraps model.
func NewAnswerer(model llms.Model, temperature float64, logger *zap.Logger) (*Answerer, error) {
	if model == nil {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{model: model, temperature: temperature, logger: logger.Named("answerer")}, nil
}

// NewChatModel returns the OpenAI-compatible chat model described by cfg.
func NewChatModel(cfg Config) (llms.Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken(cfg.token()),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return client, nil
}

// Answer asks the model to answer question from contexts and history.
func (a *Answerer) Answer(ctx context.Context, question string, contexts []string, history []string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(userPrompt(question, contexts, history))},
		},
	}
	resp, err := a.model.GenerateContent(ctx, content, llms.WithTemperature(a.temperature))
	if err != nil {
		a.logger.Error("failed to generate answer", zap.Error(err))
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		a.logger.Warn("model returned no choices")
		return NoAnswer, nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func userPrompt(question string, contexts []string, history []string) string {
	var b strings.Builder
	b.WriteString("CONTEXT:\n---\n")
	b.WriteString(strings.Join(contexts, "\n\n"))
	b.WriteString("\n---\n\nCHAT HISTORY:\n")
	for _, turn := range history {
		b.WriteString(turn)
		b.WriteString("\n")
	}
	b.WriteString("\nUSER'S QUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nYOUR ANSWER:")
	return b.String()
}

var (
	_ index.Answerer = (*Answerer)(nil)
	_ index.Answerer = Extractive{}
)

// Extractive answers without a model by returning the retrieved passage
// sharing the most words with the question.
type Extractive struct{}

// Answer picks the best matching context, or NoAnswer when none overlaps.
func (Extractive) Answer(_ context.Context, question string, contexts []string, _ []string) (string, error) {
	want := make(map[string]struct{})
	for _, w := range words(question) {
		if len(w) > 2 {
			want[w] = struct{}{}
		}
	}
	best, bestScore := "", 0
	for _, c := range contexts {
		score := 0
		for _, w := range words(c) {
			if _, ok := want[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore == 0 {
		return NoAnswer, nil
	}
	return strings.TrimSpace(best), nil
}

// NewAnswerGenerator returns the answerer described by cfg.
func NewAnswerGenerator(cfg Config, logger *zap.Logger) (index.Answerer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == ProviderOffline {
		return Extractive{}, nil
	}
	model, err := NewChatModel(cfg)
	if err != nil {
		return nil, err
	}
	return NewAnswerer(model, cfg.Temperature, logger)
}
