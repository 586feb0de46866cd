// Package ratelimit tracks per-key ISBNdb quota usage from the keystats
// block returned with opt=keystats, and says when a key is spent.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"
)

// KeyStats is the keystats object of an ISBNdb v2 response.
type KeyStats struct {
	// Requests is the number of calls counted against the key today.
	Requests int `json:"requests"`

	// DailyMaxHits is the daily call allowance, when the API reports one.
	DailyMaxHits int `json:"daily_max_hits"`

	// FreeUseLimit is the free daily allowance.
	FreeUseLimit int `json:"free_use_limit"`

	// MemberUseGranted is extra allowance from a paid plan.
	MemberUseGranted int `json:"member_use_granted"`

	// MemberUseRequests is the number of calls charged to the paid plan.
	MemberUseRequests int `json:"member_use_requests"`
}

// ParseKeyStats decodes a raw keystats object.
func ParseKeyStats(raw json.RawMessage) (KeyStats, error) {
	var stats KeyStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return KeyStats{}, fmt.Errorf("parse keystats: %w", err)
	}
	return stats, nil
}

// Limit returns the daily allowance, preferring daily_max_hits. Zero means
// the response carried no limit.
func (s KeyStats) Limit() int {
	if s.DailyMaxHits > 0 {
		return s.DailyMaxHits
	}
	return s.FreeUseLimit + s.MemberUseGranted
}

// Known reports whether the stats carry a usable limit.
func (s KeyStats) Known() bool {
	return s.Limit() > 0
}

// Remaining returns calls left today, never negative. It returns -1 when
// the limit is unknown.
func (s KeyStats) Remaining() int {
	if !s.Known() {
		return -1
	}
	left := s.Limit() - s.Requests
	if left < 0 {
		return 0
	}
	return left
}

// KeyState is the last observed quota of one key.
type KeyState struct {
	Stats     KeyStats
	UpdatedAt time.Time
}

// IsStale returns true if the state is older than maxAge.
func (s KeyState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.UpdatedAt) > maxAge
}
