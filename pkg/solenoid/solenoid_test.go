package solenoid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordRelay struct {
	mu     sync.Mutex
	states []bool
}

func (r *recordRelay) Set(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, on)
	return nil
}

func (r *recordRelay) history() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}

func stateServer(t *testing.T, on *bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(State{SolenoidOn: *on})
	}))
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestReconcileAppliesBackendState(t *testing.T) {
	on := true
	srv := stateServer(t, &on)
	defer srv.Close()

	relay := &recordRelay{}
	c := NewController(relay, srv.URL)

	if err := c.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := relay.history(); len(got) != 1 || !got[0] {
		t.Errorf("relay history: %v, want [true]", got)
	}

	on = false
	if err := c.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := relay.history(); len(got) != 2 || got[1] {
		t.Errorf("relay history: %v, want [true false]", got)
	}
}

func TestReconcilePollFailureKeepsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	relay := &recordRelay{}
	c := NewController(relay, srv.URL)

	if err := c.Reconcile(context.Background()); err == nil {
		t.Fatal("expected poll failure")
	}
	if got := relay.history(); len(got) != 0 {
		t.Errorf("relay driven on poll failure: %v", got)
	}
}

func TestPulseEnergizesThenRestores(t *testing.T) {
	on := false
	srv := stateServer(t, &on)
	defer srv.Close()

	relay := &recordRelay{}
	c := NewController(relay, srv.URL)
	c.sleep = noSleep

	c.Reconcile(context.Background())
	if err := c.Pulse(context.Background()); err != nil {
		t.Fatalf("Pulse: %v", err)
	}

	got := relay.history()
	want := []bool{false, true, false}
	if len(got) != len(want) {
		t.Fatalf("relay history: %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("relay history: %v, want %v", got, want)
		}
	}
}

func TestPulseRestoresBackendOnState(t *testing.T) {
	on := true
	srv := stateServer(t, &on)
	defer srv.Close()

	relay := &recordRelay{}
	c := NewController(relay, srv.URL)
	c.sleep = noSleep

	c.Reconcile(context.Background())
	if err := c.Pulse(context.Background()); err != nil {
		t.Fatalf("Pulse: %v", err)
	}

	got := relay.history()
	// The backend wants the latch held open, so the pulse ends by
	// re-asserting on, not dropping it.
	if last := got[len(got)-1]; !last {
		t.Errorf("relay history: %v, want final state on", got)
	}
}

func TestPulseAbortsOnCancel(t *testing.T) {
	on := false
	srv := stateServer(t, &on)
	defer srv.Close()

	relay := &recordRelay{}
	c := NewController(relay, srv.URL, WithSettle(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Pulse(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
	if got := relay.history(); len(got) != 0 {
		t.Errorf("relay energized after cancellation: %v", got)
	}
}

func TestRunDebouncesSwitchBursts(t *testing.T) {
	on := false
	srv := stateServer(t, &on)
	defer srv.Close()

	relay := &recordRelay{}
	c := NewController(relay, srv.URL, WithPollInterval(time.Hour))
	c.sleep = noSleep

	presses := make(chan time.Time, 8)
	base := time.Now()
	// One press bounces into several edges within the window.
	for i := 0; i < 5; i++ {
		presses <- base.Add(time.Duration(i) * 5 * time.Millisecond)
	}
	close(presses)

	if err := c.Run(context.Background(), presses); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pulses := 0
	for _, s := range relay.history() {
		if s {
			pulses++
		}
	}
	if pulses != 1 {
		t.Errorf("burst produced %d pulses, want 1", pulses)
	}
}
