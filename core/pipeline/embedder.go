package pipeline

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/ragvault/helper"
)

const (
	// LocalEmbeddingModel is the sentence transformer used for on-device
	// embeddings.
	LocalEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	// LocalEmbeddingDimensions is the vector length of all-MiniLM-L6-v2.
	LocalEmbeddingDimensions = 384
)

// LocalEmbedder embeds text on-device with a sentence transformer model,
// without calling any external API. It satisfies the same contract as the
// remote providers.
type LocalEmbedder struct {
	embed func(text string) ([]float32, error)
}

// NewLocalEmbedder downloads the all-MiniLM-L6-v2 model if needed and
// initializes a hugot session for it.
func NewLocalEmbedder() (*LocalEmbedder, error) {
	modelPath, err := helper.PrepareModel(LocalEmbeddingModel, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &LocalEmbedder{
		embed: func(text string) ([]float32, error) {
			result, err := sentencePipeline.RunPipeline([]string{text})
			if err != nil {
				return nil, fmt.Errorf("failed to generate embedding: %w", err)
			}
			if len(result.Embeddings) == 0 {
				return nil, fmt.Errorf("no embedding generated")
			}
			return result.Embeddings[0], nil
		},
	}, nil
}

// Embed returns the embedding vector for a single text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text)
}

// ModelName returns the embedding model identifier.
func (e *LocalEmbedder) ModelName() string {
	return LocalEmbeddingModel
}

// Dimensions returns the embedding vector length.
func (e *LocalEmbedder) Dimensions() int {
	return LocalEmbeddingDimensions
}
