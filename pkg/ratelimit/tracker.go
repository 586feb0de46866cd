package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultThreshold is the remaining-call count at or below which a key is spent.
const DefaultThreshold = 0

// StaleAfter is the age past which keystats no longer describe the key.
// ISBNdb quotas reset daily.
const StaleAfter = 24 * time.Hour

var (
	keyRequestsRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "isbndb_key_requests_remaining",
		Help: "Calls remaining today per API key, from keystats",
	}, []string{"key_label"})

	keySpentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isbndb_key_spent_total",
		Help: "Total number of times a key was reported spent by keystats",
	}, []string{"key_label"})
)

// Tracker keeps the latest keystats per key label.
type Tracker struct {
	mu        sync.Mutex
	states    map[string]KeyState
	threshold int
	logger    zerolog.Logger
}

// NewTracker creates a tracker that calls a key spent when its remaining
// calls drop to threshold or below. A negative threshold uses DefaultThreshold.
func NewTracker(threshold int, logger zerolog.Logger) *Tracker {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		states:    make(map[string]KeyState),
		threshold: threshold,
		logger:    logger,
	}
}

// Observe records stats for label.
func (t *Tracker) Observe(label string, stats KeyStats) {
	t.mu.Lock()
	t.states[label] = KeyState{Stats: stats, UpdatedAt: time.Now()}
	t.mu.Unlock()

	if !stats.Known() {
		t.logger.Debug().Str("key_label", label).Msg("keystats without a limit")
		return
	}

	remaining := stats.Remaining()
	keyRequestsRemaining.WithLabelValues(label).Set(float64(remaining))

	evt := t.logger.Debug()
	if remaining <= t.threshold {
		keySpentTotal.WithLabelValues(label).Inc()
		evt = t.logger.Warn()
	}
	evt.Str("key_label", label).
		Int("requests", stats.Requests).
		Int("limit", stats.Limit()).
		Int("remaining", remaining).
		Msg("Key quota updated")
}

// State returns the last observed state of label.
func (t *Tracker) State(label string) (KeyState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[label]
	return s, ok
}

// Spent reports whether label's last known quota is at or below the
// threshold. Keys without stats, with no reported limit, or with stats
// older than StaleAfter are not spent.
func (t *Tracker) Spent(label string) bool {
	s, ok := t.State(label)
	if !ok || !s.Stats.Known() || s.IsStale(StaleAfter) {
		return false
	}
	return s.Stats.Remaining() <= t.threshold
}
