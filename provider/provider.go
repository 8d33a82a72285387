// Package provider defines the embedding and generation backends used by
// the retrieval pipeline, with an OpenAI implementation for both.
package provider

import "context"

// Embedder produces embedding vectors for text.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelName returns the embedding model identifier.
	ModelName() string
	// Dimensions returns the embedding vector length.
	Dimensions() int
}

// Generator produces chat completions from a system and user prompt.
type Generator interface {
	// Generate returns the completion for the given prompts.
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
