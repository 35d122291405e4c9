package sensor

import (
	"context"
	"errors"
	"testing"
)

func TestConfigForTier(t *testing.T) {
	high := ConfigForTier(TierHigh)
	if high.Buffers != 2 {
		t.Errorf("high tier buffers: got %d, want 2", high.Buffers)
	}

	low := ConfigForTier(TierLow)
	if low.Buffers != 1 {
		t.Errorf("low tier buffers: got %d, want 1", low.Buffers)
	}
	if low.Width >= high.Width || low.Height >= high.Height {
		t.Errorf("low tier resolution %dx%d not reduced from %dx%d",
			low.Width, low.Height, high.Width, high.Height)
	}
	if low.Quality >= high.Quality {
		t.Errorf("low tier quality %d not reduced from %d", low.Quality, high.Quality)
	}

	for _, tier := range []MemoryTier{TierHigh, TierLow} {
		cfg := ConfigForTier(tier)
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("tier %d preset invalid: %v", tier, errs)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Width: 0, Height: 480, Quality: 101, Buffers: 3}
	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Errorf("expected 3 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestSimPoolExhaustion(t *testing.T) {
	s, err := NewSim(ConfigForTier(TierHigh))
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	ctx := context.Background()

	a, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	b, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	// Pool depth is 2; a third acquisition must fail.
	if _, err := s.Acquire(ctx); !errors.Is(err, ErrNoFreeBuffer) {
		t.Errorf("third acquire: got %v, want ErrNoFreeBuffer", err)
	}

	s.Release(a)
	if s.Outstanding() != 1 {
		t.Errorf("outstanding after release: got %d, want 1", s.Outstanding())
	}

	c, err := s.Acquire(ctx)
	if err != nil {
		t.Errorf("acquire after release: %v", err)
	}
	s.Release(b)
	s.Release(c)
	if s.Outstanding() != 0 {
		t.Errorf("outstanding after all releases: got %d, want 0", s.Outstanding())
	}
}

func TestSimSingleBufferTier(t *testing.T) {
	s, err := NewSim(ConfigForTier(TierLow))
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	ctx := context.Background()

	f, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := s.Acquire(ctx); !errors.Is(err, ErrNoFreeBuffer) {
		t.Errorf("second acquire on single buffer: got %v, want ErrNoFreeBuffer", err)
	}
	s.Release(f)
}

func TestSimAcquireErr(t *testing.T) {
	s, _ := NewSim(ConfigForTier(TierHigh))
	s.AcquireErr = ErrReadFailed

	if _, err := s.Acquire(context.Background()); !errors.Is(err, ErrReadFailed) {
		t.Errorf("got %v, want ErrReadFailed", err)
	}

	// The injected failure is one-shot.
	f, err := s.Acquire(context.Background())
	if err != nil {
		t.Errorf("acquire after injected failure: %v", err)
	}
	s.Release(f)
}

func TestSimFrameFunc(t *testing.T) {
	s, _ := NewSim(ConfigForTier(TierHigh))
	s.FrameFunc = func(n int) []byte { return make([]byte, 100+n) }

	f, _ := s.Acquire(context.Background())
	if f.Len() != 100 {
		t.Errorf("frame 0 length: got %d, want 100", f.Len())
	}
	s.Release(f)

	f, _ = s.Acquire(context.Background())
	if f.Len() != 101 {
		t.Errorf("frame 1 length: got %d, want 101", f.Len())
	}
	s.Release(f)
}

func TestSimClosed(t *testing.T) {
	s, _ := NewSim(ConfigForTier(TierLow))
	s.Close()
	if _, err := s.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
