package cache

import (
	"time"
)

// Entry is a cached page body.
type Entry struct {
	// Data is the raw response body of a successful page.
	Data []byte `json:"data"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry wraps body with an expiry ttl from now.
func NewEntry(body []byte, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Data:     body,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
