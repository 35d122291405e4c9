package trigger

import (
	"context"
	"testing"
	"time"
)

func TestDebouncerSuppressesWithinWindow(t *testing.T) {
	d := NewDebouncer(DefaultDebounce)
	base := time.Now()

	if !d.Allow(base) {
		t.Fatal("first event suppressed")
	}
	if d.Allow(base.Add(100 * time.Millisecond)) {
		t.Error("event inside window admitted")
	}
	if d.Allow(base.Add(299 * time.Millisecond)) {
		t.Error("event at window edge admitted")
	}
	if !d.Allow(base.Add(300 * time.Millisecond)) {
		t.Error("event after window suppressed")
	}
}

func TestDebouncerWindowRestartsOnAdmit(t *testing.T) {
	d := NewDebouncer(DefaultDebounce)
	base := time.Now()

	d.Allow(base)
	admitted := base.Add(400 * time.Millisecond)
	if !d.Allow(admitted) {
		t.Fatal("event after window suppressed")
	}
	// The window is measured from the last admitted event, not the
	// last attempt.
	if d.Allow(admitted.Add(200 * time.Millisecond)) {
		t.Error("event inside restarted window admitted")
	}
}

func TestChanSourceForwardsEvents(t *testing.T) {
	src := make(Chan, 2)
	events := make(chan Event, 2)

	src <- Event{Source: "test", At: time.Now()}
	src <- Event{Source: "test", At: time.Now()}
	close(src)

	if err := src.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("forwarded %d events, want 2", len(events))
	}
}

func TestChanSourceStopsOnCancel(t *testing.T) {
	src := make(Chan)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := src.Run(ctx, make(chan Event)); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDebouncerOnePerPress(t *testing.T) {
	d := NewDebouncer(DefaultDebounce)
	base := time.Now()

	// A bouncing switch produces a burst of edges; only one passes.
	admitted := 0
	for i := 0; i < 10; i++ {
		if d.Allow(base.Add(time.Duration(i) * 10 * time.Millisecond)) {
			admitted++
		}
	}
	if admitted != 1 {
		t.Errorf("burst admitted %d events, want 1", admitted)
	}
}
