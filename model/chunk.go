package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents one text chunk of a built vector index. Each chunk maps
// 1:1 to an embedding vector and inherits the source file and page of the
// unit it was cut from.
type Chunk struct {
	RID        uuid.UUID `json:"rid,omitempty"`
	CacheKey   string    `json:"cache_key,omitempty"`
	Content    string    `json:"content"`
	SourceFile string    `json:"source_file"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// RetrievalResult represents a chunk retrieved for a query.
type RetrievalResult struct {
	Chunk      *Chunk  `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
