// Package index provides the in-memory vector index built over document
// chunks, with cosine-similarity search and a gob serialization format for
// the on-disk cache.
package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/siherrmann/ragvault/model"
)

// CurrentIndexVersion is the serialization format version.
// Increment on breaking changes to the index layout.
const CurrentIndexVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported index version")

// VectorIndex holds embedded chunks for one built document set. Each chunk
// carries its own embedding vector; chunk i and its vector are never
// separated. The index is owned by exactly one cache entry or in-flight
// build and is read-only after construction.
type VectorIndex struct {
	Version    int
	ModelName  string
	Dimensions int
	Chunks     []model.Chunk
}

// New creates a new empty vector index for the given embedding model.
func New(modelName string, dimensions int) *VectorIndex {
	return &VectorIndex{
		Version:    CurrentIndexVersion,
		ModelName:  modelName,
		Dimensions: dimensions,
	}
}

// Add appends a chunk with its embedding to the index.
func (idx *VectorIndex) Add(chunk model.Chunk) error {
	if len(chunk.Embedding) != idx.Dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(chunk.Embedding), idx.Dimensions)
	}
	idx.Chunks = append(idx.Chunks, chunk)
	return nil
}

// VectorCount returns the number of indexed vectors.
func (idx *VectorIndex) VectorCount() int {
	return len(idx.Chunks)
}

// Search returns the topK chunks nearest to the query embedding, sorted by
// cosine similarity (highest first).
func (idx *VectorIndex) Search(query []float32, topK int) []*model.RetrievalResult {
	if len(query) != idx.Dimensions {
		return nil
	}

	results := make([]*model.RetrievalResult, 0, len(idx.Chunks))
	for i := range idx.Chunks {
		chunk := &idx.Chunks[i]
		similarity := float64(CosineSimilarity(query, chunk.Embedding))
		results = append(results, &model.RetrievalResult{
			Chunk:      chunk,
			Similarity: similarity,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	return results
}

// SearchSimilar implements the retrieval searcher contract over the
// in-memory index.
func (idx *VectorIndex) SearchSimilar(ctx context.Context, embedding []float32, topK int) ([]*model.RetrievalResult, error) {
	return idx.Search(embedding, topK), nil
}

// CosineSimilarity calculates the cosine similarity between two embedding vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// Encode writes the index to w using gob encoding.
func (idx *VectorIndex) Encode(w io.Writer) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(idx); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return nil
}

// Decode reads an index from r.
// Returns ErrUnsupportedVersion for indexes written by an incompatible format.
func Decode(r io.Reader) (*VectorIndex, error) {
	var idx VectorIndex
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}

	if idx.Version != CurrentIndexVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, idx.Version, CurrentIndexVersion)
	}

	return &idx, nil
}
