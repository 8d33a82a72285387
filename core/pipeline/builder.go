// Package pipeline builds vector indexes from documents: each document
// unit is anonymized, chunked and embedded, and the resulting index is
// published to the cache keyed by the document set and settings.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/ragvault/cache"
	"github.com/siherrmann/ragvault/core/index"
	"github.com/siherrmann/ragvault/core/pii"
	"github.com/siherrmann/ragvault/helper"
	"github.com/siherrmann/ragvault/model"
	"github.com/siherrmann/ragvault/provider"
)

// ErrNoContent is returned when the documents contain no extractable text.
var ErrNoContent = errors.New("documents contain no extractable text")

// Builder turns a document set into a vector index. A cache hit skips the
// whole build, including PII detection and every embedding call. On a miss
// the built index is published to the cache best-effort: a failed publish
// is logged, never fatal, since the entry can always be rebuilt.
type Builder struct {
	Chunker            ChunkFunc
	Embedder           provider.Embedder
	Engine             *pii.Engine
	Store              *cache.Store
	DetectionThreshold float64
	Log                *slog.Logger
}

// NewBuilder creates a builder without PII detection or caching. Both are
// attached with the setters.
func NewBuilder(chunker ChunkFunc, embedder provider.Embedder) *Builder {
	return &Builder{
		Chunker:            chunker,
		Embedder:           embedder,
		DetectionThreshold: pii.DefaultThreshold,
		Log:                slog.New(slog.DiscardHandler),
	}
}

// SetEngine attaches the PII detection engine.
func (b *Builder) SetEngine(engine *pii.Engine) {
	b.Engine = engine
}

// SetStore attaches the cache store.
func (b *Builder) SetStore(store *cache.Store) {
	b.Store = store
}

// SetLogger sets the builder logger.
func (b *Builder) SetLogger(logger *slog.Logger) {
	b.Log = logger
}

// Build returns the vector index for the given documents and settings,
// from cache when useCache is set. Anonymization always happens before
// chunking and embedding, so raw PII never reaches the embedding provider
// or the index.
func (b *Builder) Build(ctx context.Context, documents []*model.Document, config model.AnonymizationConfig, useCache bool) (*cache.Entry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	identities := model.Identities(documents)
	key := cache.DeriveKey(identities, config)

	if useCache && b.Store != nil {
		if entry, err := b.Store.Get(key); err == nil {
			b.Log.Info("Cache hit, skipping build",
				slog.String("cache_key", key),
				slog.Int("vector_count", entry.Index.VectorCount()))
			return entry, nil
		}
	}

	b.Log.Info("Cache miss, building vector store",
		slog.String("cache_key", key),
		slog.Int("file_count", len(documents)))

	vectorIndex := index.New(b.Embedder.ModelName(), b.Embedder.Dimensions())
	var entities []model.PIIEntity
	chunkIndex := 0
	now := time.Now()

	for _, document := range documents {
		for _, unit := range document.Units {
			text := unit.Text
			if strings.TrimSpace(text) == "" {
				continue
			}

			if config.Enabled && b.Engine != nil {
				unitEntities := b.Engine.Detect(text, config.EntityTypes, b.DetectionThreshold)
				for i := range unitEntities {
					unitEntities[i].SourceFile = document.Name
					unitEntities[i].Page = unit.Page
				}
				text = b.Engine.Anonymize(text, unitEntities, config.Method)
				entities = append(entities, unitEntities...)
			}

			contents, err := b.Chunker(text)
			if err != nil {
				return nil, helper.NewError("chunk document", err)
			}

			for _, content := range contents {
				embedding, err := b.Embedder.Embed(ctx, content)
				if err != nil {
					return nil, helper.NewError("embed chunk", err)
				}

				err = vectorIndex.Add(model.Chunk{
					RID:        uuid.New(),
					CacheKey:   key,
					Content:    content,
					SourceFile: document.Name,
					Page:       unit.Page,
					ChunkIndex: chunkIndex,
					Embedding:  embedding,
					CreatedAt:  now,
				})
				if err != nil {
					return nil, helper.NewError("index chunk", err)
				}
				chunkIndex++
			}
		}
	}

	if vectorIndex.VectorCount() == 0 {
		return nil, ErrNoContent
	}

	metadata := model.EntryMetadata{
		CacheKey:       key,
		CreatedAt:      now,
		Files:          identities,
		FileCount:      len(documents),
		Settings:       config,
		PIIEntityCount: len(entities),
		VectorCount:    vectorIndex.VectorCount(),
		Dimension:      b.Embedder.Dimensions(),
	}

	entry := &cache.Entry{
		Key:      key,
		Index:    vectorIndex,
		Entities: entities,
		Metadata: metadata,
	}

	if useCache && b.Store != nil {
		if err := b.Store.Put(key, vectorIndex, entities, metadata); err != nil {
			b.Log.Warn("Failed to cache vector store", slog.String("cache_key", key), slog.Any("error", err))
		}
	}

	b.Log.Info("Built vector store",
		slog.String("cache_key", key),
		slog.Int("vector_count", vectorIndex.VectorCount()),
		slog.Int("pii_entity_count", len(entities)))

	return entry, nil
}
