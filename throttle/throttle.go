// Package throttle converts recorded client and filesystem activity into
// adaptive pacing limits for the maintenance loop. A busy daemon indexes in
// small, slow batches so foreground searches stay responsive; an idle daemon
// catches up quickly.
package throttle

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Limits is the pacing the maintenance loop must apply between event
// batches. Limits are recomputed from a decaying activity signal and never
// persisted.
type Limits struct {
	MinDelay  time.Duration
	BatchSize int
}

// DefaultHalfLife is how long recorded activity takes to decay to half its
// weight.
const DefaultHalfLife = 30 * time.Second

type Throttler struct {
	mu       sync.Mutex
	score    float64
	lastSeen time.Time
	halfLife time.Duration
	now      func() time.Time // overridable for tests
}

func New() *Throttler {
	return &Throttler{
		halfLife: DefaultHalfLife,
		now:      time.Now,
	}
}

// RecordClientActivity notes one client request.
func (t *Throttler) RecordClientActivity() {
	t.record(1)
}

// RecordFSActivity notes n filesystem events.
func (t *Throttler) RecordFSActivity(n int) {
	if n > 0 {
		t.record(float64(n))
	}
}

func (t *Throttler) record(weight float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decayLocked()
	t.score += weight
}

// decayLocked applies exponential decay since the last observation. Callers
// must hold mu.
func (t *Throttler) decayLocked() {
	now := t.now()
	if !t.lastSeen.IsZero() {
		elapsed := now.Sub(t.lastSeen)
		if elapsed > 0 {
			t.score *= math.Pow(0.5, elapsed.Seconds()/t.halfLife.Seconds())
		}
	}
	t.lastSeen = now
}

// Score returns the current decayed activity score.
func (t *Throttler) Score() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decayLocked()
	return t.score
}

// Limits maps the current activity score onto a delay/batch-size pair.
func (t *Throttler) Limits() Limits {
	score := t.Score()
	switch {
	case score >= 50:
		return Limits{MinDelay: 500 * time.Millisecond, BatchSize: 2}
	case score >= 10:
		return Limits{MinDelay: 200 * time.Millisecond, BatchSize: 5}
	case score > 1:
		return Limits{MinDelay: 100 * time.Millisecond, BatchSize: 10}
	default:
		return Limits{MinDelay: 25 * time.Millisecond, BatchSize: 20}
	}
}

// State returns a human-readable description for status reporting.
func (t *Throttler) State() string {
	score := t.Score()
	limits := t.Limits()

	label := "idle"
	switch {
	case score >= 50:
		label = "busy"
	case score >= 10:
		label = "active"
	case score > 1:
		label = "light"
	}

	return fmt.Sprintf("%s (score %.1f): %s delay, batch %d", label, score, limits.MinDelay, limits.BatchSize)
}
