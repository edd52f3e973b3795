// Package cache holds short-lived read snapshots: order book depth served by
// the HTTP API and tweet counters fetched at market creation. Keys are
// namespaced as "<kind>:<id>" and metrics are labelled by kind.
package cache

import (
	"strings"
	"time"
)

// Cache stores snapshots keyed by namespaced strings. Writes may be applied
// asynchronously, so a Get right after a Set can miss.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) bool
	Delete(key string)
}

// Namespace returns the kind prefix of a key, or "other" when it has none.
func Namespace(key string) string {
	kind, _, found := strings.Cut(key, ":")
	if !found || kind == "" {
		return "other"
	}
	return kind
}
