package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

type fakeTimer struct {
	mu      sync.Mutex
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires timers only from Advance, never synchronously from
// AfterFunc, matching the real timer's behavior of running callbacks outside
// the caller's stack.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	pending := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()

	for _, t := range pending {
		t.mu.Lock()
		due := !t.stopped && !t.fired && !t.at.After(now)
		if due {
			t.fired = true
		}
		fn := t.fn
		t.mu.Unlock()
		if due {
			fn()
		}
	}
}

func startTestService(t *testing.T, clk clock) *Service {
	t.Helper()
	s := newWithClock(Config{Workers: 1}, time.UTC, logx.Nop(), clk)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.Stop(context.Background())
	})
	return s
}

func waitFire(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("fired %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestAddOnceFiresAtInstant(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 12, 13, 8, 0, 0, 0, time.UTC)
	clk := newFakeClock(base)
	s := startTestService(t, clk)

	fired := make(chan string, 1)
	err := s.AddOnce("job:a", base.Add(5*time.Minute), 0, func(context.Context) error {
		fired <- "job:a"
		return nil
	})
	if err != nil {
		t.Fatalf("AddOnce error: %v", err)
	}

	// Not due yet: the job stays armed.
	clk.Advance(4 * time.Minute)
	if got := s.Armed(); len(got) != 1 || got[0].Name != "job:a" {
		t.Fatalf("Armed = %v, want job:a still installed", got)
	}

	clk.Advance(time.Minute)
	waitFire(t, fired, "job:a")
}

func TestAddOncePastInstantFiresImmediately(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 12, 13, 8, 0, 0, 0, time.UTC)
	clk := newFakeClock(base)
	s := startTestService(t, clk)

	fired := make(chan string, 1)
	if err := s.AddOnce("job:late", base.Add(-time.Hour), 0, func(context.Context) error {
		fired <- "job:late"
		return nil
	}); err != nil {
		t.Fatalf("AddOnce error: %v", err)
	}

	clk.Advance(0)
	waitFire(t, fired, "job:late")
}

func TestAddOnceUpsertSupersedes(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 12, 13, 8, 0, 0, 0, time.UTC)
	clk := newFakeClock(base)
	s := startTestService(t, clk)

	fired := make(chan string, 2)
	add := func(tag string, at time.Time) {
		t.Helper()
		if err := s.AddOnce("job:a", at, 0, func(context.Context) error {
			fired <- tag
			return nil
		}); err != nil {
			t.Fatalf("AddOnce error: %v", err)
		}
	}
	add("old", base.Add(time.Minute))
	add("new", base.Add(2*time.Minute))

	clk.Advance(5 * time.Minute)
	waitFire(t, fired, "new")
	select {
	case got := <-fired:
		t.Fatalf("superseded job fired: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRemoveMatchingByPrefix(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 12, 13, 8, 0, 0, 0, time.UTC)
	clk := newFakeClock(base)
	s := startTestService(t, clk)

	noop := func(context.Context) error { return nil }
	for _, name := range []string{"reminder:s1:before", "reminder:s1:end", "digest:daily-run"} {
		if err := s.AddOnce(name, base.Add(time.Hour), 0, noop); err != nil {
			t.Fatalf("AddOnce(%q): %v", name, err)
		}
	}

	if removed := s.RemoveMatching("reminder:"); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	got := s.Armed()
	if len(got) != 1 || got[0].Name != "digest:daily-run" {
		t.Fatalf("Armed after removal = %v", got)
	}
}

func TestArmedSortedSoonestFirst(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 12, 13, 8, 0, 0, 0, time.UTC)
	clk := newFakeClock(base)
	s := startTestService(t, clk)

	noop := func(context.Context) error { return nil }
	_ = s.AddOnce("c", base.Add(3*time.Hour), 0, noop)
	_ = s.AddOnce("a", base.Add(time.Hour), 0, noop)
	_ = s.AddOnce("b", base.Add(2*time.Hour), 0, noop)

	got := s.Armed()
	if len(got) != 3 || got[0].Name != "a" || got[1].Name != "b" || got[2].Name != "c" {
		t.Fatalf("Armed order = %v", got)
	}
}

func TestAddOnceValidation(t *testing.T) {
	t.Parallel()
	s := newWithClock(Config{}, time.UTC, logx.Nop(), newFakeClock(time.Now()))
	noop := func(context.Context) error { return nil }
	if err := s.AddOnce("  ", time.Now(), 0, noop); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := s.AddOnce("x", time.Time{}, 0, noop); err == nil {
		t.Fatal("expected error for zero instant")
	}
}

func TestAddDailyRejectsBadTime(t *testing.T) {
	t.Parallel()
	s := newWithClock(Config{}, time.UTC, logx.Nop(), newFakeClock(time.Now()))
	noop := func(context.Context) error { return nil }
	for _, raw := range []string{"8am", "24:00", "12:60", "12", ""} {
		if err := s.AddDaily("digest:daily", raw, 0, noop); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("08:30")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 8 || m != 30 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}
}
