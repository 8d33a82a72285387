// Package ragvault answers questions over private documents without
// leaking personal data: documents are anonymized before indexing, built
// indexes are cached on disk keyed by content and settings, and generated
// answers are scanned for leaked identifiers before they are returned.
package ragvault

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/siherrmann/ragvault/cache"
	"github.com/siherrmann/ragvault/core/pii"
	"github.com/siherrmann/ragvault/core/pipeline"
	"github.com/siherrmann/ragvault/core/retrieval"
	"github.com/siherrmann/ragvault/database"
	"github.com/siherrmann/ragvault/helper"
	"github.com/siherrmann/ragvault/model"
	"github.com/siherrmann/ragvault/provider"
	loadSql "github.com/siherrmann/ragvault/sql"
)

const (
	// QueryScanThreshold is the detection confidence for warning about PII
	// in user questions before they are sent to any provider.
	QueryScanThreshold = 0.6
	// LeakageScanThreshold is the detection confidence for scrubbing PII
	// out of generated answers.
	LeakageScanThreshold = 0.7
)

// RagVault wires the PII engine, the cache store and the build pipeline
// into one entry point.
type RagVault struct {
	Store     *cache.Store
	Engine    *pii.Engine
	Builder   *pipeline.Builder
	Embedder  provider.Embedder
	Generator provider.Generator
	// Chunks is the optional Postgres index backend. When set, sessions
	// search Postgres instead of the in-memory index.
	Chunks *database.ChunksDBHandler
	DB     *helper.Database

	log *slog.Logger
}

// Option configures a RagVault.
type Option func(*options)

type options struct {
	logger             *slog.Logger
	ttl                time.Duration
	maxSize            int64
	nerLoader          pii.NERLoader
	detectionThreshold float64
	chunkSize          int
	chunkOverlap       int
}

// WithLogger replaces the default stdout logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTTL overrides the cache entry time to live.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithMaxCacheSize overrides the total cache size ceiling in bytes.
func WithMaxCacheSize(maxSize int64) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}

// WithNERLoader replaces the NER model loader of the PII engine.
func WithNERLoader(loader pii.NERLoader) Option {
	return func(o *options) {
		o.nerLoader = loader
	}
}

// WithDetectionThreshold overrides the PII detection confidence used
// during indexing.
func WithDetectionThreshold(threshold float64) Option {
	return func(o *options) {
		o.detectionThreshold = threshold
	}
}

// WithChunking overrides the chunk window size and overlap.
func WithChunking(chunkSize int, overlap int) Option {
	return func(o *options) {
		o.chunkSize = chunkSize
		o.chunkOverlap = overlap
	}
}

// New creates a RagVault with its cache rooted at cacheDir.
func New(cacheDir string, embedder provider.Embedder, generator provider.Generator, opts ...Option) (*RagVault, error) {
	o := &options{
		ttl:                cache.DefaultTTL,
		maxSize:            cache.DefaultMaxSize,
		detectionThreshold: pii.DefaultThreshold,
		chunkSize:          pipeline.DefaultChunkSize,
		chunkOverlap:       pipeline.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		handlerOpts := helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}
		logger = slog.New(helper.NewPrettyHandler(os.Stdout, handlerOpts))
	}

	store, err := cache.NewStore(cacheDir,
		cache.WithTTL(o.ttl),
		cache.WithMaxSize(o.maxSize),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	engineOpts := []pii.EngineOption{pii.WithLogger(logger)}
	if o.nerLoader != nil {
		engineOpts = append(engineOpts, pii.WithNERLoader(o.nerLoader))
	}
	engine := pii.NewEngine(engineOpts...)

	builder := pipeline.NewBuilder(pipeline.DefaultChunker(o.chunkSize, o.chunkOverlap), embedder)
	builder.SetEngine(engine)
	builder.SetStore(store)
	builder.SetLogger(logger)
	builder.DetectionThreshold = o.detectionThreshold

	return &RagVault{
		Store:     store,
		Engine:    engine,
		Builder:   builder,
		Embedder:  embedder,
		Generator: generator,
		log:       logger,
	}, nil
}

// UsePostgresIndex attaches a Postgres index backend. Sessions created
// after this call mirror their chunks into Postgres and search there.
func (r *RagVault) UsePostgresIndex(config *helper.DatabaseConfiguration) error {
	db := helper.NewDatabase("ragvault", config, r.log)
	if err := loadSql.Init(db.Instance); err != nil {
		return helper.NewError("initialize database extensions", err)
	}

	chunks, err := database.NewChunksDBHandler(db, r.Embedder.Dimensions(), false)
	if err != nil {
		return helper.NewError("create chunks handler", err)
	}

	r.DB = db
	r.Chunks = chunks
	return nil
}

// Close closes the Postgres connection, if one was attached.
func (r *RagVault) Close() error {
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

// SetupRAG prepares a question-answering session over the given documents.
// Expired cache entries are swept and the size ceiling enforced first, then
// the vector index is built, or loaded from cache when useCache is set.
func (r *RagVault) SetupRAG(ctx context.Context, documents []*model.Document, config model.AnonymizationConfig, useCache bool) (*Session, error) {
	expired := r.Store.SweepExpired()
	evicted := r.Store.EnforceSizeLimit()
	if expired > 0 || evicted > 0 {
		r.log.Info("Cleaned up cache", slog.Int("expired", expired), slog.Int("evicted", evicted))
	}

	entry, err := r.Builder.Build(ctx, documents, config, useCache)
	if err != nil {
		return nil, err
	}

	var searcher retrieval.Searcher = entry.Index
	if r.Chunks != nil {
		if dbSearcher := r.mirrorToPostgres(entry); dbSearcher != nil {
			searcher = dbSearcher
		}
	}

	workflow := retrieval.NewWorkflow(r.Embedder, r.Generator, searcher)
	workflow.Log = r.log

	return &Session{
		vault:    r,
		entry:    entry,
		workflow: workflow,
	}, nil
}

// mirrorToPostgres ensures the entry's chunks exist in Postgres and returns
// a searcher over them. Any failure falls back to the in-memory index.
func (r *RagVault) mirrorToPostgres(entry *cache.Entry) retrieval.Searcher {
	count, err := r.Chunks.CountChunksByCacheKey(entry.Key)
	if err != nil {
		r.log.Warn("Postgres index unavailable, using in-memory index", slog.Any("error", err))
		return nil
	}

	if count == 0 {
		if err := r.Chunks.InsertChunks(entry.Index.Chunks); err != nil {
			r.log.Warn("Failed to mirror chunks to Postgres, using in-memory index", slog.Any("error", err))
			return nil
		}
		r.log.Info("Mirrored chunks to Postgres", slog.String("cache_key", entry.Key), slog.Int("vector_count", entry.Index.VectorCount()))
	}

	return r.Chunks.SearcherFor(entry.Key)
}

// ScanQuery detects PII in a user question before it is sent anywhere.
// Callers can warn the user or refuse the question based on the result.
func (r *RagVault) ScanQuery(question string) []model.PIIEntity {
	return r.Engine.Detect(question, nil, QueryScanThreshold)
}

// CacheStatistics returns entry count and total size of the cache.
func (r *RagVault) CacheStatistics() (cache.Statistics, error) {
	return r.Store.Statistics()
}

// ClearCache removes every cache entry.
func (r *RagVault) ClearCache() error {
	return r.Store.ClearAll()
}

// Session answers questions over one built document set.
type Session struct {
	vault    *RagVault
	entry    *cache.Entry
	workflow *retrieval.Workflow
}

// Answer is the result of one question.
type Answer struct {
	Text    string
	Mode    retrieval.Mode
	Sources []*model.RetrievalResult
	// Leaked reports whether the generated text contained identifiers that
	// had to be scrubbed before returning; LeakedTypes lists their types.
	Leaked      bool
	LeakedTypes []model.EntityType
}

// Key returns the cache key of the session's document set.
func (s *Session) Key() string {
	return s.entry.Key
}

// Entities returns the PII entities detected while indexing.
func (s *Session) Entities() []model.PIIEntity {
	return s.entry.Entities
}

// PIIReport renders per-type counts of the detected entities.
func (s *Session) PIIReport() string {
	return pii.FormatReport(s.entry.Entities)
}

// VectorCount returns the number of indexed chunks.
func (s *Session) VectorCount() int {
	return s.entry.Index.VectorCount()
}

// Ask answers a question from the session's documents. Every generated
// answer is scanned once more, and any identifier that slipped through (for
// example reassembled from context fragments, or present because the entry
// was built without anonymization) is scrubbed before the answer is
// returned. Leaked then signals that the entry may need rebuilding with
// anonymization enabled.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	state, err := s.workflow.Run(ctx, question)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Text:    state.Generation,
		Mode:    state.Mode,
		Sources: state.Results,
	}

	settings := s.entry.Metadata.Settings
	method := settings.Method
	if method == "" {
		method = model.MethodReplace
	}

	scrubbed, leaks := s.vault.Engine.DetectAndAnonymize(answer.Text, method, settings.EntityTypes, LeakageScanThreshold)
	if len(leaks) > 0 {
		answer.Text = scrubbed
		answer.Leaked = true
		seen := make(map[model.EntityType]bool)
		for _, leak := range leaks {
			if !seen[leak.Type] {
				seen[leak.Type] = true
				answer.LeakedTypes = append(answer.LeakedTypes, leak.Type)
			}
		}
		s.vault.log.Warn("Scrubbed leaked identifiers from answer", slog.Int("count", len(leaks)))
	}

	return answer, nil
}
