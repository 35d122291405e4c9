package sensor

import (
	"context"
	"fmt"
	"sync"
)

// Sim is a deterministic in-memory sensor. It enforces the same pool
// discipline as the hardware: at most Config.Buffers frames may be
// outstanding, and a frame must be released before its slot frees up.
type Sim struct {
	mu          sync.Mutex
	cfg         Config
	seq         int
	outstanding map[*Frame]struct{}
	closed      bool

	// FrameFunc produces the payload for the n-th acquisition
	// (0-based). Defaults to a small synthetic JPEG.
	FrameFunc func(n int) []byte

	// AcquireErr, when set, makes the next Acquire fail with this
	// error.
	AcquireErr error
}

// NewSim creates a simulated sensor with the given capture profile.
func NewSim(cfg Config) (*Sim, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("sensor: invalid config: %v", errs)
	}
	return &Sim{
		cfg:         cfg,
		outstanding: make(map[*Frame]struct{}),
	}, nil
}

// Acquire hands out the next synthetic frame, or ErrNoFreeBuffer when
// the pool is exhausted.
func (s *Sim) Acquire(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := s.AcquireErr; err != nil {
		s.AcquireErr = nil
		return nil, err
	}
	if len(s.outstanding) >= s.cfg.Buffers {
		return nil, ErrNoFreeBuffer
	}

	data := s.synthesize(s.seq)
	s.seq++

	f := &Frame{
		Data:   data,
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
	}
	s.outstanding[f] = struct{}{}
	return f, nil
}

// Release returns a frame's slot to the pool. Releasing a frame that is
// not outstanding is a caller bug and is ignored.
func (s *Sim) Release(f *Frame) {
	if f == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outstanding, f)
}

// Outstanding reports how many frames are currently held.
func (s *Sim) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

// Close marks the sensor unusable.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// jpegHeader is the SOI marker every real frame starts with; the mock
// backend checks for it.
var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0}

func (s *Sim) synthesize(n int) []byte {
	if s.FrameFunc != nil {
		return s.FrameFunc(n)
	}
	data := make([]byte, 0, len(jpegHeader)+32)
	data = append(data, jpegHeader...)
	data = append(data, []byte(fmt.Sprintf("simulated frame %d", n))...)
	return data
}

var _ Sensor = (*Sim)(nil)
