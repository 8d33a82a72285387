package ragvault

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/siherrmann/ragvault/core/pii"
	"github.com/siherrmann/ragvault/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

type stubGenerator struct {
	answer string
	calls  int
}

func (g *stubGenerator) Generate(context.Context, string, string) (string, error) {
	g.calls++
	return g.answer, nil
}

// nameFinder detects the given names as PERSON entities without a model.
func nameFinder(names ...string) pii.NERLoader {
	return func() (pii.NERFunc, error) {
		return func(text string) ([]model.PIIEntity, error) {
			var entities []model.PIIEntity
			for _, name := range names {
				start := strings.Index(text, name)
				if start < 0 {
					continue
				}
				entities = append(entities, model.PIIEntity{
					Type:  model.EntityPerson,
					Text:  name,
					Score: 0.98,
					Start: start,
					End:   start + len(name),
				})
			}
			return entities, nil
		}, nil
	}
}

func patientDocuments() []*model.Document {
	return []*model.Document{
		{
			Name: "admission.pdf",
			Size: 4096,
			Units: []model.Unit{
				{Text: "Patient John Doe, SSN 123-45-6789, was admitted on site.", Page: 1},
			},
		},
	}
}

func testVault(t *testing.T, embedder *stubEmbedder, generator *stubGenerator) *RagVault {
	vault, err := New(t.TempDir(), embedder, generator,
		WithNERLoader(nameFinder("John Doe")),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	return vault
}

func TestSetupRAG(t *testing.T) {
	ctx := context.Background()
	config := model.AnonymizationConfig{Enabled: true, Method: model.MethodReplace}

	t.Run("Detects and anonymizes PII before indexing", func(t *testing.T) {
		embedder := &stubEmbedder{}
		vault := testVault(t, embedder, &stubGenerator{answer: "ok"})

		session, err := vault.SetupRAG(ctx, patientDocuments(), config, true)

		require.NoError(t, err)
		types := make(map[model.EntityType]bool)
		for _, entity := range session.Entities() {
			types[entity.Type] = true
			assert.Equal(t, "admission.pdf", entity.SourceFile)
			assert.Equal(t, 1, entity.Page)
		}
		assert.True(t, types[model.EntityUSSSN], "Expected the SSN to be detected")
		assert.True(t, types[model.EntityPerson], "Expected the patient name to be detected")

		for _, text := range embedder.texts {
			assert.NotContains(t, text, "123-45-6789", "Expected raw PII to never reach the embedder")
			assert.NotContains(t, text, "John Doe")
		}
		assert.Contains(t, strings.Join(embedder.texts, " "), "<SSN>")
	})

	t.Run("Second setup for the same documents hits the cache", func(t *testing.T) {
		embedder := &stubEmbedder{}
		vault := testVault(t, embedder, &stubGenerator{answer: "ok"})

		first, err := vault.SetupRAG(ctx, patientDocuments(), config, true)
		require.NoError(t, err)
		callsAfterFirst := embedder.calls

		second, err := vault.SetupRAG(ctx, patientDocuments(), config, true)

		require.NoError(t, err)
		assert.Equal(t, callsAfterFirst, embedder.calls, "Expected the cached entry to be reused")
		assert.Equal(t, first.Key(), second.Key())
		assert.Equal(t, first.VectorCount(), second.VectorCount())
	})

	t.Run("Reordering documents builds a different entry", func(t *testing.T) {
		embedder := &stubEmbedder{}
		vault := testVault(t, embedder, &stubGenerator{answer: "ok"})
		docA := &model.Document{Name: "a.pdf", Size: 1, Units: []model.Unit{{Text: "alpha content", Page: 1}}}
		docB := &model.Document{Name: "b.pdf", Size: 2, Units: []model.Unit{{Text: "beta content", Page: 1}}}

		first, err := vault.SetupRAG(ctx, []*model.Document{docA, docB}, config, true)
		require.NoError(t, err)
		second, err := vault.SetupRAG(ctx, []*model.Document{docB, docA}, config, true)
		require.NoError(t, err)

		assert.NotEqual(t, first.Key(), second.Key(), "Expected document order to change the cache identity")
	})
}

func TestSessionAsk(t *testing.T) {
	ctx := context.Background()
	config := model.AnonymizationConfig{Enabled: true, Method: model.MethodReplace}

	t.Run("Clean answers pass through unscrubbed", func(t *testing.T) {
		generator := &stubGenerator{answer: "The patient record references <SSN> only."}
		vault := testVault(t, &stubEmbedder{}, generator)
		session, err := vault.SetupRAG(ctx, patientDocuments(), config, true)
		require.NoError(t, err)

		answer, err := session.Ask(ctx, "Who was admitted?")

		require.NoError(t, err)
		assert.False(t, answer.Leaked)
		assert.Equal(t, generator.answer, answer.Text)
		assert.NotEmpty(t, answer.Sources)
	})

	t.Run("Leaked identifiers are scrubbed from the answer", func(t *testing.T) {
		generator := &stubGenerator{answer: "The SSN on file is 123-45-6789."}
		vault := testVault(t, &stubEmbedder{}, generator)
		session, err := vault.SetupRAG(ctx, patientDocuments(), config, true)
		require.NoError(t, err)

		answer, err := session.Ask(ctx, "What is on file?")

		require.NoError(t, err)
		assert.True(t, answer.Leaked, "Expected the leak to be flagged")
		assert.Contains(t, answer.LeakedTypes, model.EntityUSSSN)
		assert.NotContains(t, answer.Text, "123-45-6789")
		assert.Contains(t, answer.Text, "<SSN>")
	})

	t.Run("Answers are scanned even for entries built without anonymization", func(t *testing.T) {
		generator := &stubGenerator{answer: "The SSN on file is 123-45-6789."}
		vault := testVault(t, &stubEmbedder{}, generator)
		session, err := vault.SetupRAG(ctx, patientDocuments(), model.AnonymizationConfig{Enabled: false}, true)
		require.NoError(t, err)

		answer, err := session.Ask(ctx, "What is on file?")

		require.NoError(t, err)
		assert.True(t, answer.Leaked, "Expected the leak to signal the unanonymized entry")
		assert.NotContains(t, answer.Text, "123-45-6789")
		assert.Contains(t, answer.Text, "<SSN>")
	})

	t.Run("Summary questions run in summary mode", func(t *testing.T) {
		generator := &stubGenerator{answer: "A short summary."}
		vault := testVault(t, &stubEmbedder{}, generator)
		session, err := vault.SetupRAG(ctx, patientDocuments(), config, true)
		require.NoError(t, err)

		answer, err := session.Ask(ctx, "Summarize the admission record")

		require.NoError(t, err)
		assert.Equal(t, "summary", string(answer.Mode))
	})
}

func TestScanQuery(t *testing.T) {
	t.Run("Detects PII in questions", func(t *testing.T) {
		vault := testVault(t, &stubEmbedder{}, &stubGenerator{})

		entities := vault.ScanQuery("Is 123-45-6789 mentioned anywhere?")

		require.Len(t, entities, 1)
		assert.Equal(t, model.EntityUSSSN, entities[0].Type)
	})

	t.Run("Clean questions yield nothing", func(t *testing.T) {
		vault := testVault(t, &stubEmbedder{}, &stubGenerator{})

		assert.Empty(t, vault.ScanQuery("What happened in the meeting?"))
	})
}

func TestCacheManagement(t *testing.T) {
	ctx := context.Background()
	config := model.AnonymizationConfig{Enabled: true, Method: model.MethodReplace}

	t.Run("Statistics reflect built entries and clearing removes them", func(t *testing.T) {
		vault := testVault(t, &stubEmbedder{}, &stubGenerator{answer: "ok"})
		_, err := vault.SetupRAG(ctx, patientDocuments(), config, true)
		require.NoError(t, err)

		stats, err := vault.CacheStatistics()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalEntries)
		assert.Greater(t, stats.TotalSizeBytes, int64(0))

		require.NoError(t, vault.ClearCache())

		stats, err = vault.CacheStatistics()
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalEntries)
	})

	t.Run("PII report summarizes detections", func(t *testing.T) {
		vault := testVault(t, &stubEmbedder{}, &stubGenerator{answer: "ok"})
		session, err := vault.SetupRAG(ctx, patientDocuments(), config, true)
		require.NoError(t, err)

		report := session.PIIReport()

		assert.Contains(t, report, "US_SSN: 1")
		assert.Contains(t, report, "PERSON: 1")
	})
}
