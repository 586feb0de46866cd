package ratelimit

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTracker_Spent(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		stats     *KeyStats
		want      bool
	}{
		{name: "never observed", threshold: 0, stats: nil, want: false},
		{name: "plenty left", threshold: 0, stats: &KeyStats{Requests: 10, DailyMaxHits: 500}, want: false},
		{name: "exactly used up", threshold: 0, stats: &KeyStats{Requests: 500, DailyMaxHits: 500}, want: true},
		{name: "within threshold", threshold: 5, stats: &KeyStats{Requests: 496, DailyMaxHits: 500}, want: true},
		{name: "unknown limit", threshold: 5, stats: &KeyStats{Requests: 9999}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.threshold, zerolog.Nop())
			if tt.stats != nil {
				tr.Observe("main", *tt.stats)
			}
			if got := tr.Spent("main"); got != tt.want {
				t.Errorf("Spent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_StaleStatsNotSpent(t *testing.T) {
	tr := NewTracker(0, zerolog.Nop())
	tr.Observe("main", KeyStats{Requests: 500, DailyMaxHits: 500})
	if !tr.Spent("main") {
		t.Fatal("Spent() = false right after a used-up observation")
	}

	tr.mu.Lock()
	st := tr.states["main"]
	st.UpdatedAt = time.Now().Add(-StaleAfter - time.Minute)
	tr.states["main"] = st
	tr.mu.Unlock()

	if tr.Spent("main") {
		t.Error("Spent() = true for stats older than StaleAfter")
	}
}

func TestTracker_NegativeThresholdUsesDefault(t *testing.T) {
	tr := NewTracker(-1, zerolog.Nop())
	if tr.threshold != DefaultThreshold {
		t.Errorf("threshold = %d, want %d", tr.threshold, DefaultThreshold)
	}
}

func TestTracker_StatePerLabel(t *testing.T) {
	tr := NewTracker(0, zerolog.Nop())
	tr.Observe("a", KeyStats{Requests: 1, DailyMaxHits: 10})
	tr.Observe("b", KeyStats{Requests: 7, DailyMaxHits: 10})

	a, ok := tr.State("a")
	if !ok || a.Stats.Requests != 1 {
		t.Errorf("State(a) = %+v, %v", a, ok)
	}
	b, ok := tr.State("b")
	if !ok || b.Stats.Requests != 7 {
		t.Errorf("State(b) = %+v, %v", b, ok)
	}
	if _, ok := tr.State("c"); ok {
		t.Error("State(c) should not exist")
	}
}

func TestTracker_WarnsWhenSpent(t *testing.T) {
	buf := &bytes.Buffer{}
	tr := NewTracker(0, zerolog.New(buf))

	tr.Observe("main", KeyStats{Requests: 500, DailyMaxHits: 500})

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("Expected warn log, got %q", out)
	}
	if !strings.Contains(out, `"key_label":"main"`) {
		t.Errorf("Expected key_label field, got %q", out)
	}
}
