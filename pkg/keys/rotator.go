package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrKeysExhausted is returned when the rotator has no key left to hand out.
var ErrKeysExhausted = errors.New("api keys exhausted")

var (
	keySelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isbndb_key_selections_total",
		Help: "Total number of API key selections by key label",
	}, []string{"key_label"})

	keysExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "isbndb_keys_exhausted_total",
		Help: "Total number of times the key set ran out",
	})
)

// Rotator hands out keys from a KeySet in file order.
type Rotator struct {
	keys   *KeySet
	cursor CursorStore
	logger zerolog.Logger
}

// NewRotator creates a rotator over keys. A nil cursor uses a MemoryStore.
func NewRotator(keys *KeySet, cursor CursorStore, logger zerolog.Logger) *Rotator {
	if keys == nil {
		keys = NewKeySet()
	}
	if cursor == nil {
		cursor = NewMemoryStore()
	}
	return &Rotator{
		keys:   keys,
		cursor: cursor,
		logger: logger,
	}
}

// Current returns the key the cursor points at, if it is set and still
// present in the key set.
func (r *Rotator) Current(ctx context.Context) (Key, bool, error) {
	idx, err := r.currentIndex(ctx)
	if err != nil {
		return Key{}, false, err
	}
	if idx < 0 {
		return Key{}, false, nil
	}
	return r.keys.At(idx), true, nil
}

// Next advances to the key after the current one, or to the first key
// when none is current. It returns ErrKeysExhausted when the current key
// is the last one.
func (r *Rotator) Next(ctx context.Context) (Key, error) {
	idx, err := r.currentIndex(ctx)
	if err != nil {
		return Key{}, err
	}

	next := idx + 1
	if next >= r.keys.Len() {
		keysExhaustedTotal.Inc()
		r.logger.Error().
			Int("keys", r.keys.Len()).
			Msg("No API keys left")
		return Key{}, fmt.Errorf("%w: %d of %d used", ErrKeysExhausted, r.keys.Len(), r.keys.Len())
	}

	key := r.keys.At(next)
	if err := r.cursor.SetCurrent(ctx, key.Label); err != nil {
		return Key{}, fmt.Errorf("store current key: %w", err)
	}

	keySelectionsTotal.WithLabelValues(key.Label).Inc()
	r.logger.Info().
		Str("key_label", key.Label).
		Str("key", key.Masked()).
		Int("position", next+1).
		Int("keys", r.keys.Len()).
		Msg("Selected API key")

	return key, nil
}

// currentIndex returns the cursor position, or -1 when unset. A label
// that is no longer in the key file counts as unset.
func (r *Rotator) currentIndex(ctx context.Context) (int, error) {
	label, ok, err := r.cursor.Current(ctx)
	if err != nil {
		return -1, fmt.Errorf("load current key: %w", err)
	}
	if !ok {
		return -1, nil
	}

	idx := r.keys.IndexOf(label)
	if idx < 0 {
		r.logger.Warn().
			Str("key_label", label).
			Msg("Stored key label not in key file, restarting at first key")
	}
	return idx, nil
}
