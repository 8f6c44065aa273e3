// Package cache stores normalized API responses keyed by request identity.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Entry is one cached response payload, always in envelope form.
type Entry struct {
	Key      string        `json:"key"`
	Payload  []byte        `json:"payload"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// Valid reports whether the entry is still live at now.
func (e *Entry) Valid(now time.Time) bool {
	return e != nil && now.Sub(e.StoredAt) < e.TTL
}

// Store is a response cache. Expired entries are evicted when they are looked up, never swept.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, entry *Entry) error
	// Clear removes entries whose key contains pattern; an empty pattern removes everything.
	Clear(ctx context.Context, pattern string) (int, error)
	Close() error
}

// Key derives the cache key from method, URL and body. Bodies are hashed to keep keys short.
func Key(method, url string, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(url)
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		b.WriteByte('#')
		b.WriteString(hex.EncodeToString(sum[:8]))
	}
	return b.String()
}
