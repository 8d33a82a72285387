package pipeline

import "context"

// ChunkFunc splits a text into overlapping chunk contents.
type ChunkFunc func(text string) ([]string, error)

// EmbedFunc generates an embedding vector for text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)
