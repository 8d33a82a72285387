package model

import (
	"encoding/json"
	"time"
)

// EntryMetadata describes one persisted cache entry. It is written next to
// the serialized index and read back to validate age before a hit is served.
type EntryMetadata struct {
	CacheKey       string              `json:"cache_key"`
	CreatedAt      time.Time           `json:"created_at"`
	Files          []DocumentIdentity  `json:"files"`
	FileCount      int                 `json:"file_count"`
	Settings       AnonymizationConfig `json:"settings"`
	PIIEntityCount int                 `json:"pii_entity_count"`
	VectorCount    int                 `json:"vector_count"`
	Dimension      int                 `json:"dimension"`
	SizeBytes      int64               `json:"size_bytes,omitempty"`
}

// Marshal converts the metadata to indented JSON.
func (m EntryMetadata) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Unmarshal parses metadata from JSON bytes.
func (m *EntryMetadata) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}

// Age returns how long ago the entry was created.
func (m EntryMetadata) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}
