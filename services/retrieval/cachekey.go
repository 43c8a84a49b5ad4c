package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/upb/semantic-retrieval/services/backends"
)

// CacheKey is a deterministic hash of the request shape plus protocol tag.
// Identical requests on the same protocol always produce identical keys;
// logically identical requests on different protocols never collide.
type CacheKey string

// ComputeCacheKey derives the cache key for a request under a protocol.
// Document types are sorted so set-equal filters hash identically, and
// string fields are quoted so field boundaries cannot be forged by content.
func ComputeCacheKey(protocol backends.Protocol, req *Request) CacheKey {
	types := append([]string(nil), req.DocumentTypes...)
	sort.Strings(types)

	h := sha256.New()
	fmt.Fprintf(h, "%q|%q|%q|%d|%.9f|%t|", protocol, req.Query, req.TenantID,
		req.Limit, req.RelevanceThreshold, req.IncludeMetadata)
	for _, t := range types {
		fmt.Fprintf(h, "%q,", t)
	}

	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

// String returns the hex form of the key
func (k CacheKey) String() string {
	return string(k)
}

// Short returns a truncated form for logging
func (k CacheKey) Short() string {
	s := string(k)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// canonicalDocumentTypes returns the sorted, comma-joined filter for the
// effective-parameters block of the explainability output.
func canonicalDocumentTypes(types []string) string {
	if len(types) == 0 {
		return ""
	}
	sorted := append([]string(nil), types...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
