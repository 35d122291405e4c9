// Package capture orchestrates one illuminated exposure: light on,
// warm-up, stale-frame discard, fresh acquisition, size validation.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bumpbox/go-bumpbox/pkg/sensor"
)

// Defaults carried over from the locker firmware.
const (
	// DefaultWarmup is how long illumination and auto-exposure settle
	// before the fresh frame is taken.
	DefaultWarmup = 150 * time.Millisecond

	// DefaultMaxFrameBytes is the backend's upload ceiling. Frames
	// above it are rejected before any transport attempt.
	DefaultMaxFrameBytes = 1_000_000
)

// ErrFrameTooLarge is returned when the captured frame exceeds the
// transport ceiling. The frame has already been released.
var ErrFrameTooLarge = errors.New("capture: frame exceeds transport ceiling")

// Illuminator switches the capture light.
type Illuminator interface {
	On() error
	Off() error
}

// NopLight is an Illuminator for sensors without a controllable light.
type NopLight struct{}

func (NopLight) On() error  { return nil }
func (NopLight) Off() error { return nil }

// Phase identifies a checkpoint inside one capture sequence.
type Phase int

const (
	// PhaseIlluminating begins when the light turns on.
	PhaseIlluminating Phase = iota

	// PhaseCapturing begins when warm-up completes and frames are
	// being acquired.
	PhaseCapturing
)

// Sleeper waits for a duration or until the context is done. Injected so
// tests can simulate time instead of sleeping.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sequencer produces one validated, illuminated frame per call.
type Sequencer struct {
	sensor   sensor.Sensor
	light    Illuminator
	warmup   time.Duration
	maxBytes int
	sleep    Sleeper
	onPhase  func(Phase)
	logger   *slog.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithWarmup overrides the illumination warm-up interval.
func WithWarmup(d time.Duration) Option {
	return func(q *Sequencer) { q.warmup = d }
}

// WithMaxFrameBytes overrides the transport ceiling.
func WithMaxFrameBytes(n int) Option {
	return func(q *Sequencer) { q.maxBytes = n }
}

// WithSleeper replaces the real-time wait, for tests.
func WithSleeper(s Sleeper) Option {
	return func(q *Sequencer) { q.sleep = s }
}

// WithPhaseHook registers a callback fired at each phase checkpoint.
func WithPhaseHook(fn func(Phase)) Option {
	return func(q *Sequencer) { q.onPhase = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Sequencer) { q.logger = l }
}

// SetPhaseHook replaces the phase callback after construction, for
// callers built after the Sequencer itself.
func (q *Sequencer) SetPhaseHook(fn func(Phase)) {
	q.onPhase = fn
}

// NewSequencer creates a Sequencer over a sensor and its light.
func NewSequencer(s sensor.Sensor, light Illuminator, opts ...Option) *Sequencer {
	q := &Sequencer{
		sensor:   s,
		light:    light,
		warmup:   DefaultWarmup,
		maxBytes: DefaultMaxFrameBytes,
		sleep:    sleep,
		logger:   slog.Default().With("component", "capture"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Capture runs one illuminated exposure and returns the fresh frame.
// The caller owns the frame and must hand it back via Release. On any
// error no frame is outstanding.
//
// The first acquisition after the light turns on may have been buffered
// before illumination, so it is acquired and released unused; skipping
// that discard ships an under-illuminated image.
func (q *Sequencer) Capture(ctx context.Context) (*sensor.Frame, error) {
	q.phase(PhaseIlluminating)
	if err := q.light.On(); err != nil {
		return nil, fmt.Errorf("capture: illumination on: %w", err)
	}

	if err := q.sleep(ctx, q.warmup); err != nil {
		q.lightOff()
		return nil, fmt.Errorf("capture: warm-up interrupted: %w", err)
	}

	q.phase(PhaseCapturing)

	// Stale-frame discard. A failed discard acquisition is fine, the
	// buffer may simply have been empty.
	if stale, err := q.sensor.Acquire(ctx); err == nil {
		q.sensor.Release(stale)
	}

	frame, err := q.sensor.Acquire(ctx)

	// Light goes off as soon as the exposure is done, not after
	// validation or upload.
	q.lightOff()

	if err != nil {
		return nil, fmt.Errorf("capture: acquire: %w", err)
	}

	q.logger.Debug("frame acquired",
		"bytes", frame.Len(),
		"width", frame.Width,
		"height", frame.Height,
	)

	if frame.Len() > q.maxBytes {
		size := frame.Len()
		q.sensor.Release(frame)
		return nil, fmt.Errorf("capture: %d bytes over %d limit: %w",
			size, q.maxBytes, ErrFrameTooLarge)
	}

	return frame, nil
}

// Release hands a frame from Capture back to the sensor.
func (q *Sequencer) Release(f *sensor.Frame) {
	q.sensor.Release(f)
}

func (q *Sequencer) phase(p Phase) {
	if q.onPhase != nil {
		q.onPhase(p)
	}
}

func (q *Sequencer) lightOff() {
	if err := q.light.Off(); err != nil {
		q.logger.Warn("illumination off failed", "error", err)
	}
}
