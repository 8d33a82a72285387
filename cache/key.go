// Package cache provides the content-addressed on-disk store for built
// vector indexes, keyed by document identities and anonymization settings,
// with TTL expiration and size-bounded eviction.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/siherrmann/ragvault/model"
)

// KeyLength is the fixed length of derived cache keys.
const KeyLength = 16

// DeriveKey derives the deterministic cache key for a document set and
// anonymization configuration. Document order is part of the identity.
// MD5 is used for cache addressing only, not for any security property.
func DeriveKey(files []model.DocumentIdentity, config model.AnonymizationConfig) string {
	hasher := md5.New()

	for _, file := range files {
		io.WriteString(hasher, fmt.Sprintf("%s:%d;", file.Name, file.Size))
	}
	io.WriteString(hasher, config.KeyString())

	return hex.EncodeToString(hasher.Sum(nil))[:KeyLength]
}
