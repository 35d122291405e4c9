// Package status renders pipeline outcomes as human-observable signals.
// It is purely observational; nothing here feeds back into the pipeline.
package status

import (
	"log/slog"
	"time"
)

// Code is one of the fixed outcome signals. Server rejections and parse
// failures share the upload-failure pattern, as the firmware's single
// "send failed" blink did.
type Code int

const (
	CodeSuccess Code = iota
	CodeSensorFailure
	CodeTransportFailure
	CodeSizeExceeded
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeSensorFailure:
		return "sensor-failure"
	case CodeTransportFailure:
		return "transport-failure"
	case CodeSizeExceeded:
		return "size-exceeded"
	}
	return "unknown"
}

// Sink receives one outcome code per pipeline invocation.
type Sink interface {
	Signal(Code)
}

// LED is a single binary indicator.
type LED interface {
	Set(on bool) error
}

// LEDFunc adapts a function to the LED interface.
type LEDFunc func(on bool) error

func (f LEDFunc) Set(on bool) error { return f(on) }

// pattern is a blink sequence: count flashes of on/off duration.
type pattern struct {
	count    int
	duration time.Duration
}

// Blink patterns per code, carried over from the firmware: two short
// flashes for success, error counts distinguish the failure class.
var patterns = map[Code]pattern{
	CodeSuccess:          {count: 2, duration: 100 * time.Millisecond},
	CodeTransportFailure: {count: 3, duration: 150 * time.Millisecond},
	CodeSizeExceeded:     {count: 4, duration: 150 * time.Millisecond},
	CodeSensorFailure:    {count: 5, duration: 150 * time.Millisecond},
}

// Blinker renders codes as blink patterns on an LED.
type Blinker struct {
	led    LED
	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewBlinker creates a Blinker over an LED.
func NewBlinker(led LED) *Blinker {
	return &Blinker{
		led:    led,
		sleep:  time.Sleep,
		logger: slog.Default().With("component", "status"),
	}
}

// Signal blocks while the pattern plays out; the pipeline is idle
// between invocations anyway.
func (b *Blinker) Signal(code Code) {
	p, ok := patterns[code]
	if !ok {
		return
	}
	for i := 0; i < p.count; i++ {
		if err := b.led.Set(true); err != nil {
			b.logger.Warn("led write failed", "error", err)
			return
		}
		b.sleep(p.duration)
		b.led.Set(false)
		if i < p.count-1 {
			b.sleep(p.duration)
		}
	}
}

// Console logs each outcome code.
type Console struct {
	Logger *slog.Logger
}

func (c Console) Signal(code Code) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if code == CodeSuccess {
		logger.Info("pipeline outcome", "status", code.String())
		return
	}
	logger.Warn("pipeline outcome", "status", code.String())
}

// Multi fans a signal out to several sinks.
type Multi []Sink

func (m Multi) Signal(code Code) {
	for _, s := range m {
		s.Signal(code)
	}
}
