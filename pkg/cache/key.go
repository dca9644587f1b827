package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies one upstream response: the endpoint path plus its
// flat query parameters.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/studies/NCT00000001")
	Endpoint string

	// Params are the query parameters (e.g., {"pageSize": "50"})
	Params map[string]string
}

// String generates the canonical key form. Parameters are sorted and
// escaped, so maps with equal contents always produce the same string.
// Format: ctgov:endpoint?k1=v1&k2=v2
//
// Example:
//
//	ctgov:studies?pageSize=50&query.cond=asthma
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString("ctgov:")
	b.WriteString(strings.Trim(k.Endpoint, "/"))

	if len(k.Params) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(k.Params))
	for key := range k.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	b.WriteByte('?')
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(k.Params[key]))
	}
	return b.String()
}

// Digest returns the hex SHA-256 of the canonical key. Both lookups and
// stores go through Digest.
func (k CacheKey) Digest() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}

// Category returns the partition the key belongs to.
func (k CacheKey) Category() Category {
	return CategoryForEndpoint(k.Endpoint)
}
