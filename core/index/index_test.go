package index

import (
	"bytes"
	"context"
	"testing"

	"github.com/siherrmann/ragvault/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *VectorIndex {
	idx := New("stub-model", 3)

	chunks := []model.Chunk{
		{Content: "alpha", SourceFile: "a.pdf", Page: 1, ChunkIndex: 0, Embedding: []float32{1, 0, 0}},
		{Content: "beta", SourceFile: "a.pdf", Page: 2, ChunkIndex: 1, Embedding: []float32{0, 1, 0}},
		{Content: "gamma", SourceFile: "b.pdf", Page: 1, ChunkIndex: 2, Embedding: []float32{0.9, 0.1, 0}},
	}
	for _, chunk := range chunks {
		require.NoError(t, idx.Add(chunk))
	}

	return idx
}

func TestVectorIndexAdd(t *testing.T) {
	t.Run("Add rejects wrong dimensions", func(t *testing.T) {
		idx := New("stub-model", 3)

		err := idx.Add(model.Chunk{Content: "bad", Embedding: []float32{1, 0}})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "dimension mismatch")
		assert.Equal(t, 0, idx.VectorCount())
	})

	t.Run("Add accepts matching dimensions", func(t *testing.T) {
		idx := testIndex(t)

		assert.Equal(t, 3, idx.VectorCount())
	})
}

func TestVectorIndexSearch(t *testing.T) {
	t.Run("Returns nearest chunks first", func(t *testing.T) {
		idx := testIndex(t)

		results := idx.Search([]float32{1, 0, 0}, 2)

		require.Len(t, results, 2)
		assert.Equal(t, "alpha", results[0].Chunk.Content)
		assert.Equal(t, "gamma", results[1].Chunk.Content)
		assert.Greater(t, results[0].Similarity, results[1].Similarity)
	})

	t.Run("Truncates to topK even with more candidates", func(t *testing.T) {
		idx := testIndex(t)

		results := idx.Search([]float32{1, 0, 0}, 1)

		assert.Len(t, results, 1)
	})

	t.Run("Query with wrong dimensions yields no results", func(t *testing.T) {
		idx := testIndex(t)

		results := idx.Search([]float32{1, 0}, 3)

		assert.Nil(t, results)
	})

	t.Run("SearchSimilar satisfies the searcher contract", func(t *testing.T) {
		idx := testIndex(t)

		results, err := idx.SearchSimilar(context.Background(), []float32{0, 1, 0}, 3)

		require.NoError(t, err)
		assert.Equal(t, "beta", results[0].Chunk.Content)
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical vectors have similarity 1", func(t *testing.T) {
		assert.InDelta(t, 1.0, float64(CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})), 1e-6)
	})

	t.Run("Orthogonal vectors have similarity 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, float64(CosineSimilarity([]float32{1, 0}, []float32{0, 1})), 1e-6)
	})

	t.Run("Mismatched lengths yield 0", func(t *testing.T) {
		assert.Equal(t, float32(0), CosineSimilarity([]float32{1, 0}, []float32{1}))
	})

	t.Run("Zero vector yields 0", func(t *testing.T) {
		assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	})
}

func TestVectorIndexEncodeDecode(t *testing.T) {
	t.Run("Round trip preserves chunks and metadata", func(t *testing.T) {
		idx := testIndex(t)

		var buf bytes.Buffer
		require.NoError(t, idx.Encode(&buf))

		decoded, err := Decode(&buf)

		require.NoError(t, err)
		assert.Equal(t, idx.ModelName, decoded.ModelName)
		assert.Equal(t, idx.Dimensions, decoded.Dimensions)
		require.Equal(t, idx.VectorCount(), decoded.VectorCount())
		assert.Equal(t, idx.Chunks[0].Content, decoded.Chunks[0].Content)
		assert.Equal(t, idx.Chunks[0].Embedding, decoded.Chunks[0].Embedding)
	})

	t.Run("Decode rejects unsupported versions", func(t *testing.T) {
		idx := testIndex(t)
		idx.Version = 99

		var buf bytes.Buffer
		require.NoError(t, idx.Encode(&buf))

		_, err := Decode(&buf)

		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("Decode fails on corrupt data", func(t *testing.T) {
		_, err := Decode(bytes.NewReader([]byte("not a gob stream")))

		assert.Error(t, err)
	})
}
