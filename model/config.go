package model

import (
	"fmt"
	"sort"
	"strings"
)

// AnonymizationMethod selects how detected PII spans are rewritten.
type AnonymizationMethod string

const (
	// MethodReplace substitutes each span with a bracketed type tag, e.g. <PERSON>.
	MethodReplace AnonymizationMethod = "replace"
	// MethodMask substitutes each span with a run of '*' matching the span length.
	MethodMask AnonymizationMethod = "mask"
	// MethodHash substitutes each span with a stable SHA-256 digest of the span,
	// so identical inputs stay co-referent across a session.
	MethodHash AnonymizationMethod = "hash"
	// MethodRedact removes the span entirely.
	MethodRedact AnonymizationMethod = "redact"
)

// Validate reports whether the method is one of the supported variants.
func (m AnonymizationMethod) Validate() error {
	switch m {
	case MethodReplace, MethodMask, MethodHash, MethodRedact:
		return nil
	}
	return fmt.Errorf("invalid anonymization method %q, use 'replace', 'mask', 'hash' or 'redact'", string(m))
}

// AnonymizationConfig controls PII handling for one index build.
// It is part of the cache identity: content anonymized under different
// rules must never be served for this configuration.
type AnonymizationConfig struct {
	Enabled     bool                `json:"enabled"`
	Method      AnonymizationMethod `json:"method"`
	EntityTypes []EntityType        `json:"entity_types,omitempty"` // nil = all supported types
}

// Validate reports whether the configuration is usable for a build.
// A disabled configuration is always valid; an enabled one needs a
// supported method.
func (c AnonymizationConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return c.Method.Validate()
}

// KeyString returns the canonical serialization of the configuration used
// for cache key derivation. EntityTypes is a set, so it is sorted to keep
// the serialization deterministic.
func (c AnonymizationConfig) KeyString() string {
	types := make([]string, len(c.EntityTypes))
	for i, t := range c.EntityTypes {
		types[i] = string(t)
	}
	sort.Strings(types)

	return fmt.Sprintf("%t_%s_%s", c.Enabled, c.Method, strings.Join(types, ","))
}
