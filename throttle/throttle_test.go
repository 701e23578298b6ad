package throttle

import (
	"strings"
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestThrottler() (*Throttler, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	th := New()
	th.now = clock.now
	return th, clock
}

func TestLimits_IdleByDefault(t *testing.T) {
	th, _ := newTestThrottler()

	limits := th.Limits()
	if limits.MinDelay != 25*time.Millisecond {
		t.Errorf("expected idle delay 25ms, got %s", limits.MinDelay)
	}
	if limits.BatchSize != 20 {
		t.Errorf("expected idle batch size 20, got %d", limits.BatchSize)
	}
}

func TestLimits_TightenUnderLoad(t *testing.T) {
	th, _ := newTestThrottler()

	for i := 0; i < 60; i++ {
		th.RecordClientActivity()
	}

	limits := th.Limits()
	if limits.MinDelay != 500*time.Millisecond {
		t.Errorf("expected busy delay 500ms, got %s", limits.MinDelay)
	}
	if limits.BatchSize != 2 {
		t.Errorf("expected busy batch size 2, got %d", limits.BatchSize)
	}
}

func TestScore_DecaysByHalfLife(t *testing.T) {
	th, clock := newTestThrottler()

	th.RecordFSActivity(40)
	if score := th.Score(); score < 39.9 || score > 40.1 {
		t.Fatalf("expected score near 40, got %f", score)
	}

	clock.advance(DefaultHalfLife)
	if score := th.Score(); score < 19.5 || score > 20.5 {
		t.Errorf("expected score near 20 after one half-life, got %f", score)
	}

	clock.advance(DefaultHalfLife)
	if score := th.Score(); score < 9.5 || score > 10.5 {
		t.Errorf("expected score near 10 after two half-lives, got %f", score)
	}
}

func TestLimits_RelaxAfterDecay(t *testing.T) {
	th, clock := newTestThrottler()

	th.RecordFSActivity(100)
	if limits := th.Limits(); limits.BatchSize != 2 {
		t.Fatalf("expected busy batch size 2, got %d", limits.BatchSize)
	}

	clock.advance(10 * DefaultHalfLife)
	if limits := th.Limits(); limits.BatchSize != 20 {
		t.Errorf("expected idle batch size 20 after decay, got %d", limits.BatchSize)
	}
}

func TestRecordFSActivity_IgnoresNonPositive(t *testing.T) {
	th, _ := newTestThrottler()

	th.RecordFSActivity(0)
	th.RecordFSActivity(-5)
	if score := th.Score(); score != 0 {
		t.Errorf("expected zero score, got %f", score)
	}
}

func TestState_Readable(t *testing.T) {
	th, _ := newTestThrottler()

	state := th.State()
	if !strings.Contains(state, "idle") {
		t.Errorf("expected idle state, got %q", state)
	}
	if !strings.Contains(state, "batch 20") {
		t.Errorf("expected batch size in state, got %q", state)
	}

	for i := 0; i < 60; i++ {
		th.RecordClientActivity()
	}
	if state := th.State(); !strings.Contains(state, "busy") {
		t.Errorf("expected busy state, got %q", state)
	}
}
