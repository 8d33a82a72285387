// Package database provides the optional Postgres index backend. Chunks are
// stored with their pgvector embeddings keyed by cache key, so several
// processes can share one index instead of each holding it in memory.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/ragvault/helper"
	"github.com/siherrmann/ragvault/model"
	loadSql "github.com/siherrmann/ragvault/sql"
)

// ChunksDBHandlerFunctions defines the interface for chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(chunk *model.Chunk) error
	InsertChunks(chunks []model.Chunk) error
	SelectChunksByCacheKey(cacheKey string) ([]*model.Chunk, error)
	SelectChunksBySimilarity(cacheKey string, embedding []float32, limit int) ([]*model.RetrievalResult, error)
	DeleteChunksByCacheKey(cacheKey string) (int, error)
	CountChunksByCacheKey(cacheKey string) (int, error)
}

// ChunksDBHandler handles chunk-related database operations.
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts a new chunk.
func (h *ChunksDBHandler) InsertChunk(chunk *model.Chunk) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6)`,
		chunk.CacheKey,
		chunk.Content,
		chunk.SourceFile,
		chunk.Page,
		chunk.ChunkIndex,
		pq.Array(chunk.Embedding),
	)

	var id int
	err := row.Scan(
		&id,
		&chunk.RID,
		&chunk.CacheKey,
		&chunk.Content,
		&chunk.SourceFile,
		&chunk.Page,
		&chunk.ChunkIndex,
		pq.Array(&chunk.Embedding),
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// InsertChunks inserts all chunks of one built entry.
func (h *ChunksDBHandler) InsertChunks(chunks []model.Chunk) error {
	for i := range chunks {
		if err := h.InsertChunk(&chunks[i]); err != nil {
			return err
		}
	}
	return nil
}

// SelectChunksByCacheKey retrieves all chunks of an entry in chunk order.
func (h *ChunksDBHandler) SelectChunksByCacheKey(cacheKey string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_cache_key($1)`,
		cacheKey,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}

		var id int
		err := rows.Scan(
			&id,
			&chunk.RID,
			&chunk.CacheKey,
			&chunk.Content,
			&chunk.SourceFile,
			&chunk.Page,
			&chunk.ChunkIndex,
			pq.Array(&chunk.Embedding),
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySimilarity performs vector similarity search within one
// entry's chunks, nearest first.
func (h *ChunksDBHandler) SelectChunksBySimilarity(cacheKey string, embedding []float32, limit int) ([]*model.RetrievalResult, error) {
	embeddingVector := pgvector.NewVector(embedding)

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3)`,
		cacheKey,
		embeddingVector,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.RetrievalResult
	for rows.Next() {
		chunk := &model.Chunk{}

		var id int
		var similarity float64
		err := rows.Scan(
			&id,
			&chunk.RID,
			&chunk.CacheKey,
			&chunk.Content,
			&chunk.SourceFile,
			&chunk.Page,
			&chunk.ChunkIndex,
			pq.Array(&chunk.Embedding),
			&chunk.CreatedAt,
			&similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunk.Similarity = similarity
		results = append(results, &model.RetrievalResult{
			Chunk:      chunk,
			Similarity: similarity,
		})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// DeleteChunksByCacheKey removes all chunks of an entry and returns the
// number of rows deleted.
func (h *ChunksDBHandler) DeleteChunksByCacheKey(cacheKey string) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRow(
		`SELECT delete_chunks_by_cache_key($1)`,
		cacheKey,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}
	return deleted, nil
}

// CountChunksByCacheKey returns the number of stored chunks for an entry.
func (h *ChunksDBHandler) CountChunksByCacheKey(cacheKey string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_chunks_by_cache_key($1)`,
		cacheKey,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("query", err)
	}
	return count, nil
}

// KeyedSearcher adapts the handler to the retrieval searcher contract for
// one cache key.
type KeyedSearcher struct {
	handler  *ChunksDBHandler
	cacheKey string
}

// SearcherFor returns a searcher bound to the given cache key.
func (h *ChunksDBHandler) SearcherFor(cacheKey string) *KeyedSearcher {
	return &KeyedSearcher{handler: h, cacheKey: cacheKey}
}

// SearchSimilar finds the chunks most similar to the query embedding.
func (s *KeyedSearcher) SearchSimilar(ctx context.Context, embedding []float32, topK int) ([]*model.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.handler.SelectChunksBySimilarity(s.cacheKey, embedding, topK)
}
