package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultEmbeddingDimensions is the vector length of text-embedding-3-small.
	DefaultEmbeddingDimensions = 1536
	// DefaultRequestsPerSecond bounds the request rate against the API.
	DefaultRequestsPerSecond = 5
)

// OpenAI implements Embedder and Generator against the OpenAI API or any
// compatible endpoint.
type OpenAI struct {
	client         *openai.Client
	limiter        *rate.Limiter
	embeddingModel openai.EmbeddingModel
	dimensions     int
	chatModel      string
	temperature    float32
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI, *openai.ClientConfig)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(_ *OpenAI, config *openai.ClientConfig) {
		config.BaseURL = baseURL
	}
}

// WithEmbeddingModel overrides the embedding model and its vector length.
func WithEmbeddingModel(model openai.EmbeddingModel, dimensions int) OpenAIOption {
	return func(p *OpenAI, _ *openai.ClientConfig) {
		p.embeddingModel = model
		p.dimensions = dimensions
	}
}

// WithChatModel overrides the generation model.
func WithChatModel(model string) OpenAIOption {
	return func(p *OpenAI, _ *openai.ClientConfig) {
		p.chatModel = model
	}
}

// WithRequestsPerSecond overrides the API request rate limit.
func WithRequestsPerSecond(rps float64) OpenAIOption {
	return func(p *OpenAI, _ *openai.ClientConfig) {
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewOpenAI creates a provider using text-embedding-3-small for embeddings
// and gpt-4o-mini for generation. Generation runs at temperature zero so
// answers stay grounded in the supplied context.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	provider := &OpenAI{
		limiter:        rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		embeddingModel: openai.SmallEmbedding3,
		dimensions:     DefaultEmbeddingDimensions,
		chatModel:      openai.GPT4oMini,
	}

	config := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(provider, &config)
	}
	provider.client = openai.NewClientWithConfig(config)

	return provider
}

// Embed returns the embedding vector for a single text.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	response, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return response.Data[0].Embedding, nil
}

// ModelName returns the embedding model identifier.
func (p *OpenAI) ModelName() string {
	return string(p.embeddingModel)
}

// Dimensions returns the embedding vector length.
func (p *OpenAI) Dimensions() int {
	return p.dimensions
}

// Generate returns the completion for the given prompts.
func (p *OpenAI) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	response, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	return response.Choices[0].Message.Content, nil
}
