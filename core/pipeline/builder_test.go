package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/siherrmann/ragvault/cache"
	"github.com/siherrmann/ragvault/core/pii"
	"github.com/siherrmann/ragvault/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder counts calls and records the texts it embedded.
type stubEmbedder struct {
	calls int
	texts []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	s.texts = append(s.texts, text)
	return []float32{float32(len(text)), 1, 0}, nil
}

func (s *stubEmbedder) ModelName() string { return "stub-model" }
func (s *stubEmbedder) Dimensions() int   { return 3 }

// stubPIIEngine detects nothing beyond pattern recognizers.
func stubPIIEngine() *pii.Engine {
	return pii.NewEngine(pii.WithNERLoader(func() (pii.NERFunc, error) {
		return func(string) ([]model.PIIEntity, error) { return nil, nil }, nil
	}))
}

func testDocuments() []*model.Document {
	return []*model.Document{
		{
			Name: "report.pdf",
			Size: 1024,
			Units: []model.Unit{
				{Text: "The quarterly results were strong across all regions.", Page: 1},
				{Text: "Contact our analyst at jane.roe@example.com for details.", Page: 2},
			},
		},
	}
}

func TestBuilderBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("Builds one chunk per unit for short texts", func(t *testing.T) {
		embedder := &stubEmbedder{}
		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), embedder)

		entry, err := builder.Build(ctx, testDocuments(), model.AnonymizationConfig{}, true)

		require.NoError(t, err)
		assert.Equal(t, 2, entry.Index.VectorCount())
		assert.Equal(t, 2, embedder.calls)
		assert.Equal(t, "report.pdf", entry.Index.Chunks[0].SourceFile)
		assert.Equal(t, 1, entry.Index.Chunks[0].Page)
		assert.Equal(t, 2, entry.Index.Chunks[1].Page)
		assert.Equal(t, 0, entry.Index.Chunks[0].ChunkIndex)
		assert.Equal(t, 1, entry.Index.Chunks[1].ChunkIndex)
		assert.Equal(t, entry.Key, entry.Index.Chunks[0].CacheKey)
	})

	t.Run("Cache hit skips detection and embedding entirely", func(t *testing.T) {
		store, err := cache.NewStore(t.TempDir())
		require.NoError(t, err)
		embedder := &stubEmbedder{}
		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), embedder)
		builder.SetStore(store)

		first, err := builder.Build(ctx, testDocuments(), model.AnonymizationConfig{}, true)
		require.NoError(t, err)
		callsAfterFirst := embedder.calls

		second, err := builder.Build(ctx, testDocuments(), model.AnonymizationConfig{}, true)

		require.NoError(t, err)
		assert.Equal(t, callsAfterFirst, embedder.calls, "Expected the second build to not embed anything")
		assert.Equal(t, first.Key, second.Key)
		assert.Equal(t, first.Index.VectorCount(), second.Index.VectorCount())
	})

	t.Run("Disabled cache rebuilds and never persists", func(t *testing.T) {
		store, err := cache.NewStore(t.TempDir())
		require.NoError(t, err)
		embedder := &stubEmbedder{}
		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), embedder)
		builder.SetStore(store)

		first, err := builder.Build(ctx, testDocuments(), model.AnonymizationConfig{}, false)
		require.NoError(t, err)
		callsAfterFirst := embedder.calls

		_, err = builder.Build(ctx, testDocuments(), model.AnonymizationConfig{}, false)

		require.NoError(t, err)
		assert.Equal(t, 2*callsAfterFirst, embedder.calls, "Expected the second build to embed again")
		_, err = store.Get(first.Key)
		assert.ErrorIs(t, err, cache.ErrEntryNotFound, "Expected nothing to be persisted")
	})

	t.Run("Anonymization happens before embedding", func(t *testing.T) {
		embedder := &stubEmbedder{}
		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), embedder)
		builder.SetEngine(stubPIIEngine())
		config := model.AnonymizationConfig{Enabled: true, Method: model.MethodReplace}

		entry, err := builder.Build(ctx, testDocuments(), config, true)

		require.NoError(t, err)
		for _, text := range embedder.texts {
			assert.NotContains(t, text, "jane.roe@example.com", "Expected raw PII to never reach the embedder")
		}
		assert.Contains(t, strings.Join(embedder.texts, " "), "<EMAIL>")
		require.Len(t, entry.Entities, 1)
		assert.Equal(t, model.EntityEmailAddress, entry.Entities[0].Type)
		assert.Equal(t, "report.pdf", entry.Entities[0].SourceFile)
		assert.Equal(t, 2, entry.Entities[0].Page)
		assert.Equal(t, 1, entry.Metadata.PIIEntityCount)
	})

	t.Run("Disabled anonymization leaves text untouched", func(t *testing.T) {
		embedder := &stubEmbedder{}
		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), embedder)
		builder.SetEngine(stubPIIEngine())

		entry, err := builder.Build(ctx, testDocuments(), model.AnonymizationConfig{Enabled: false}, true)

		require.NoError(t, err)
		assert.Contains(t, strings.Join(embedder.texts, " "), "jane.roe@example.com")
		assert.Empty(t, entry.Entities)
	})

	t.Run("Documents without text fail with ErrNoContent", func(t *testing.T) {
		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), &stubEmbedder{})
		empty := []*model.Document{{Name: "blank.pdf", Size: 10, Units: []model.Unit{{Text: "   ", Page: 1}}}}

		_, err := builder.Build(ctx, empty, model.AnonymizationConfig{}, true)

		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("Invalid anonymization method fails the build", func(t *testing.T) {
		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), &stubEmbedder{})

		_, err := builder.Build(ctx, testDocuments(), model.AnonymizationConfig{Enabled: true, Method: "scramble"}, true)

		assert.Error(t, err)
	})

	t.Run("Failed cache publish is not fatal", func(t *testing.T) {
		dir := t.TempDir() + "/store"
		store, err := cache.NewStore(dir)
		require.NoError(t, err)
		// Turn the store root into a file so publishing must fail.
		require.NoError(t, os.RemoveAll(dir))
		require.NoError(t, os.WriteFile(dir, []byte("in the way"), 0600))

		builder := NewBuilder(DefaultChunker(DefaultChunkSize, DefaultChunkOverlap), &stubEmbedder{})
		builder.SetStore(store)

		entry, err := builder.Build(ctx, testDocuments(), model.AnonymizationConfig{}, true)

		require.NoError(t, err, "Expected the build to succeed despite the failed publish")
		assert.Equal(t, 2, entry.Index.VectorCount())
	})
}
