// Package sensor owns the image sensor and its fixed-size frame buffer
// pool. A Frame acquired here must be released back to the same sensor
// exactly once; an unreleased Frame permanently occupies a pool slot.
package sensor

import (
	"context"
	"errors"
)

// Sentinel errors for acquisition.
var (
	// ErrNoFreeBuffer is returned when every pool slot is held by an
	// unreleased Frame.
	ErrNoFreeBuffer = errors.New("sensor: no free frame buffer")

	// ErrReadFailed is returned when the underlying device produced no
	// usable frame.
	ErrReadFailed = errors.New("sensor: frame read failed")

	// ErrClosed is returned when acquiring from a closed sensor.
	ErrClosed = errors.New("sensor: closed")
)

// Frame is an exclusively-owned JPEG buffer plus metadata. Whoever holds
// it must hand it back via Sensor.Release on every exit path and never
// keep it past the end of one pipeline invocation.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Len returns the byte length of the frame payload.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// Sensor is the hardware-facing contract. Acquire may hand out a frame
// that was buffered before the most recent illumination change took
// effect; callers that need a fresh exposure must discard one frame
// first.
type Sensor interface {
	Acquire(ctx context.Context) (*Frame, error)
	Release(f *Frame)
}
