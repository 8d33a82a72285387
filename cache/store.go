package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/ragvault/core/index"
	"github.com/siherrmann/ragvault/helper"
	"github.com/siherrmann/ragvault/model"
)

const (
	// IndexFileName holds the gob-serialized vector index of an entry.
	IndexFileName = "index.gob"
	// EntitiesFileName holds the PII entities detected during the build.
	EntitiesFileName = "pii_entities.json"
	// MetadataFileName holds the entry metadata used for TTL and eviction.
	MetadataFileName = "metadata.json"

	// DefaultTTL is the default maximum entry age.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultMaxSize is the default total cache size ceiling in bytes.
	DefaultMaxSize = 500 * 1024 * 1024

	// Entries may contain anonymized-but-still-sensitive text and embeddings,
	// so everything is written owner-only.
	dirPerm  = 0700
	filePerm = 0600
)

// ErrEntryNotFound is returned by Get for missing, expired or unreadable entries.
var ErrEntryNotFound = errors.New("cache entry not found")

// Entry is one loaded cache entry.
type Entry struct {
	Key      string
	Index    *index.VectorIndex
	Entities []model.PIIEntity
	Metadata model.EntryMetadata
}

// Store persists vector indexes on disk, one directory per cache key.
// A cache entry is a derived artifact, never a source of truth: concurrent
// builders for the same key race to publish and the last writer wins, which
// wastes work but never corrupts readers (entries are published atomically).
type Store struct {
	dir     string
	ttl     time.Duration
	maxSize int64
	log     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets the maximum entry age before expiration.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithMaxSize sets the total cache size ceiling in bytes.
func WithMaxSize(maxSize int64) StoreOption {
	return func(s *Store) {
		s.maxSize = maxSize
	}
}

// WithLogger sets the logger used for swallowed I/O failures.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.log = logger
	}
}

// NewStore creates a cache store rooted at dir, creating it if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	store := &Store{
		dir:     dir,
		ttl:     DefaultTTL,
		maxSize: DefaultMaxSize,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, helper.NewError("create cache directory", err)
	}

	return store, nil
}

// SetTTL changes the maximum entry age. Exposed for maintenance tooling.
func (s *Store) SetTTL(ttl time.Duration) {
	s.ttl = ttl
}

// SetMaxSize changes the total size ceiling. Exposed for maintenance tooling.
func (s *Store) SetMaxSize(maxSize int64) {
	s.maxSize = maxSize
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key)
}

// Get loads the entry for the given key. Expired entries are treated as
// not found (lazy expiration at read time), as is any unreadable or
// partially missing entry: a cache read failure is always a miss, never a
// fatal error.
func (s *Store) Get(key string) (*Entry, error) {
	entryPath := s.entryPath(key)

	metadataBytes, err := os.ReadFile(filepath.Join(entryPath, MetadataFileName))
	if err != nil {
		return nil, ErrEntryNotFound
	}

	var metadata model.EntryMetadata
	if err := metadata.Unmarshal(metadataBytes); err != nil {
		s.log.Warn("Unreadable cache metadata, treating as miss", slog.String("cache_key", key), slog.Any("error", err))
		return nil, ErrEntryNotFound
	}

	if metadata.Age(time.Now()) > s.ttl {
		s.log.Info("Cache entry expired", slog.String("cache_key", key), slog.Duration("age", metadata.Age(time.Now())))
		if err := os.RemoveAll(entryPath); err != nil {
			s.log.Warn("Failed to remove expired cache entry", slog.String("cache_key", key), slog.Any("error", err))
		}
		return nil, ErrEntryNotFound
	}

	indexFile, err := os.Open(filepath.Join(entryPath, IndexFileName))
	if err != nil {
		return nil, ErrEntryNotFound
	}
	defer indexFile.Close()

	vectorIndex, err := index.Decode(indexFile)
	if err != nil {
		s.log.Warn("Unreadable cache index, treating as miss", slog.String("cache_key", key), slog.Any("error", err))
		return nil, ErrEntryNotFound
	}

	entities := []model.PIIEntity{}
	entitiesBytes, err := os.ReadFile(filepath.Join(entryPath, EntitiesFileName))
	if err != nil {
		return nil, ErrEntryNotFound
	}
	if err := json.Unmarshal(entitiesBytes, &entities); err != nil {
		s.log.Warn("Unreadable cache entities, treating as miss", slog.String("cache_key", key), slog.Any("error", err))
		return nil, ErrEntryNotFound
	}

	return &Entry{
		Key:      key,
		Index:    vectorIndex,
		Entities: entities,
		Metadata: metadata,
	}, nil
}

// Put persists an entry atomically: the three files are written into a
// temporary directory which is renamed over the destination only on success,
// so a reader never observes a partially written entry.
func (s *Store) Put(key string, vectorIndex *index.VectorIndex, entities []model.PIIEntity, metadata model.EntryMetadata) error {
	tmpPath := filepath.Join(s.dir, fmt.Sprintf("%s.tmp-%s", key, uuid.NewString()[:8]))
	if err := os.MkdirAll(tmpPath, dirPerm); err != nil {
		return helper.NewError("create temp cache directory", err)
	}
	defer os.RemoveAll(tmpPath)

	indexFile, err := os.OpenFile(filepath.Join(tmpPath, IndexFileName), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return helper.NewError("create index file", err)
	}
	if err := vectorIndex.Encode(indexFile); err != nil {
		indexFile.Close()
		return helper.NewError("encode index", err)
	}
	if err := indexFile.Close(); err != nil {
		return helper.NewError("close index file", err)
	}

	if entities == nil {
		entities = []model.PIIEntity{}
	}
	entitiesBytes, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return helper.NewError("marshal entities", err)
	}
	if err := os.WriteFile(filepath.Join(tmpPath, EntitiesFileName), entitiesBytes, filePerm); err != nil {
		return helper.NewError("write entities file", err)
	}

	metadata.CacheKey = key
	if metadata.CreatedAt.IsZero() {
		metadata.CreatedAt = time.Now()
	}
	metadata.SizeBytes = dirSize(tmpPath)
	metadataBytes, err := metadata.Marshal()
	if err != nil {
		return helper.NewError("marshal metadata", err)
	}
	if err := os.WriteFile(filepath.Join(tmpPath, MetadataFileName), metadataBytes, filePerm); err != nil {
		return helper.NewError("write metadata file", err)
	}

	// Last writer wins on concurrent builds for the same key.
	entryPath := s.entryPath(key)
	if err := os.RemoveAll(entryPath); err != nil {
		return helper.NewError("remove previous cache entry", err)
	}
	if err := os.Rename(tmpPath, entryPath); err != nil {
		return helper.NewError("publish cache entry", err)
	}

	s.log.Info("Cached vector store", slog.String("cache_key", key), slog.Int64("size_bytes", metadata.SizeBytes))

	return nil
}

// entryInfo pairs an entry directory with its metadata for sweeps.
type entryInfo struct {
	key       string
	path      string
	createdAt time.Time
	size      int64
}

// entries lists all published entries. Stale temp directories and entries
// without readable metadata are skipped.
func (s *Store) entries() ([]entryInfo, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, helper.NewError("read cache directory", err)
	}

	var infos []entryInfo
	for _, dirEntry := range dirEntries {
		if !dirEntry.IsDir() || strings.Contains(dirEntry.Name(), ".tmp-") {
			continue
		}

		entryPath := filepath.Join(s.dir, dirEntry.Name())
		metadataBytes, err := os.ReadFile(filepath.Join(entryPath, MetadataFileName))
		if err != nil {
			continue
		}
		var metadata model.EntryMetadata
		if err := metadata.Unmarshal(metadataBytes); err != nil {
			continue
		}

		infos = append(infos, entryInfo{
			key:       dirEntry.Name(),
			path:      entryPath,
			createdAt: metadata.CreatedAt,
			size:      dirSize(entryPath),
		})
	}

	return infos, nil
}

// SweepExpired removes all entries older than the TTL and returns the number
// of entries removed. Intended to run once per session start, not per request.
func (s *Store) SweepExpired() int {
	infos, err := s.entries()
	if err != nil {
		s.log.Warn("Failed to list cache entries", slog.Any("error", err))
		return 0
	}

	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for _, info := range infos {
		if info.createdAt.Before(cutoff) {
			if err := os.RemoveAll(info.path); err != nil {
				s.log.Warn("Failed to remove expired cache entry", slog.String("cache_key", info.key), slog.Any("error", err))
				continue
			}
			removed++
			s.log.Info("Removed expired cache entry", slog.String("cache_key", info.key))
		}
	}

	return removed
}

// EnforceSizeLimit deletes entries oldest-first until the total cache size
// is under the configured ceiling. Returns the number of entries removed.
func (s *Store) EnforceSizeLimit() int {
	infos, err := s.entries()
	if err != nil {
		s.log.Warn("Failed to list cache entries", slog.Any("error", err))
		return 0
	}

	var total int64
	for _, info := range infos {
		total += info.size
	}
	if total <= s.maxSize {
		return 0
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].createdAt.Before(infos[j].createdAt)
	})

	removed := 0
	for _, info := range infos {
		if total <= s.maxSize {
			break
		}
		if err := os.RemoveAll(info.path); err != nil {
			s.log.Warn("Failed to evict cache entry", slog.String("cache_key", info.key), slog.Any("error", err))
			continue
		}
		total -= info.size
		removed++
		s.log.Info("Evicted cache entry", slog.String("cache_key", info.key), slog.Int64("size_bytes", info.size))
	}

	return removed
}

// ClearAll removes every cache entry unconditionally.
func (s *Store) ClearAll() error {
	infos, err := s.entries()
	if err != nil {
		return err
	}
	for _, info := range infos {
		if err := os.RemoveAll(info.path); err != nil {
			return helper.NewError("remove cache entry", err)
		}
	}
	return nil
}

// Statistics summarizes the current cache contents.
type Statistics struct {
	TotalEntries   int   `json:"total_entries"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// Statistics returns entry count and total size of the cache.
func (s *Store) Statistics() (Statistics, error) {
	infos, err := s.entries()
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{TotalEntries: len(infos)}
	for _, info := range infos {
		stats.TotalSizeBytes += info.size
	}

	return stats, nil
}

// dirSize sums the sizes of all regular files under path.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		return nil
	})
	return size
}
