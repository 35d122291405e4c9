// Package pipeline drives one trigger through capture, encoding, upload
// and interpretation, tracking the invocation as an explicit state
// machine. One invocation is in flight at a time; triggers arriving
// while busy are rejected.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/bumpbox/go-bumpbox/pkg/capture"
	"github.com/bumpbox/go-bumpbox/pkg/detect"
	"github.com/bumpbox/go-bumpbox/pkg/encode"
	"github.com/bumpbox/go-bumpbox/pkg/netmon"
	"github.com/bumpbox/go-bumpbox/pkg/status"
	"github.com/bumpbox/go-bumpbox/pkg/upload"
)

// Pipeline states.
const (
	StateIdle         = "idle"
	StateIlluminating = "illuminating"
	StateCapturing    = "capturing"
	StateEncoding     = "encoding"
	StateUploading    = "uploading"
	StateInterpreting = "interpreting"
	StateDone         = "done"
	StateFailed       = "failed"
)

// ErrBusy is returned when a trigger arrives while an invocation is
// already in flight.
var ErrBusy = errors.New("pipeline: invocation already in flight")

// ErrDisconnected is returned when the backend is unreachable and
// reconnection failed, before any capture resources were touched.
var ErrDisconnected = errors.New("pipeline: backend unreachable")

// Controller owns the per-invocation state machine and the collaborator
// set. It is safe for concurrent Trigger calls; all but one are turned
// away with ErrBusy.
type Controller struct {
	seq       *capture.Sequencer
	enc       *encode.Encoder
	transport *upload.Transport
	conn      netmon.Connectivity
	sink      status.Sink

	// captureFirst runs the exposure before the connectivity check,
	// the way the original device did. Default is to check first and
	// skip illumination entirely when the backend is unreachable.
	captureFirst bool

	busy    atomic.Bool
	machine atomic.Pointer[fsm.FSM]
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithConnectivity installs a backend reachability check.
func WithConnectivity(c netmon.Connectivity) Option {
	return func(p *Controller) { p.conn = c }
}

// WithStatusSink installs an outcome signal sink.
func WithStatusSink(s status.Sink) Option {
	return func(p *Controller) { p.sink = s }
}

// WithCaptureFirst captures before checking connectivity.
func WithCaptureFirst(v bool) Option {
	return func(p *Controller) { p.captureFirst = v }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Controller) { p.logger = l }
}

// New creates a Controller over the capture, encode and upload stages.
func New(seq *capture.Sequencer, enc *encode.Encoder, t *upload.Transport, opts ...Option) *Controller {
	p := &Controller{
		seq:       seq,
		enc:       enc,
		transport: t,
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	seq.SetPhaseHook(p.PhaseHook)
	return p
}

// newMachine builds the per-invocation state machine. A fresh machine
// per invocation keeps state transitions single-threaded and makes the
// terminal states genuinely terminal.
func (p *Controller) newMachine(captureID string) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: "trigger", Src: []string{StateIdle}, Dst: StateIlluminating},
			{Name: "warm", Src: []string{StateIlluminating}, Dst: StateCapturing},
			{Name: "captured", Src: []string{StateCapturing}, Dst: StateEncoding},
			{Name: "encoded", Src: []string{StateEncoding}, Dst: StateUploading},
			{Name: "uploaded", Src: []string{StateUploading}, Dst: StateInterpreting},
			{Name: "interpreted", Src: []string{StateInterpreting}, Dst: StateDone},
			{Name: "fail", Src: []string{
				StateIdle, StateIlluminating, StateCapturing,
				StateEncoding, StateUploading, StateInterpreting,
			}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"after_event": func(e *fsm.Event) {
				if e.Src != e.Dst {
					p.logger.Debug("state transition",
						"capture_id", captureID,
						"from", e.Src, "to", e.Dst, "event", e.Event)
				}
			},
		},
	)
}

// push fires a state machine event. Self-transitions are tolerated; any
// other refusal is a programming error worth hearing about.
func (p *Controller) push(m *fsm.FSM, event string) {
	err := m.Event(event)
	if _, ok := err.(fsm.NoTransitionError); err != nil && !ok {
		p.logger.Error("state machine rejected event",
			"event", event, "state", m.Current(), "error", err)
	}
}

// Trigger runs one full invocation: capture, encode, upload, interpret.
// It returns ErrBusy without side effects when another invocation is in
// flight. The Outcome is non-nil whenever err is nil, including for
// failed invocations; err is reserved for rejected triggers.
func (p *Controller) Trigger(ctx context.Context) (*Outcome, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer p.busy.Store(false)

	captureID := uuid.NewString()
	m := p.newMachine(captureID)
	p.machine.Store(m)
	defer p.machine.Store(nil)

	out := p.run(ctx, m)
	out.CaptureID = captureID

	if out.OK() {
		p.push(m, "interpreted")
		p.logger.Info("invocation done",
			"capture_id", captureID,
			"label", out.Record.Label,
			"category", out.Record.Category,
			"confidence", out.Record.Confidence)
	} else {
		p.push(m, "fail")
		p.logger.Warn("invocation failed",
			"capture_id", captureID,
			"outcome", out.Tag.String(),
			"error", out.Err)
	}

	if p.sink != nil {
		p.sink.Signal(out.Tag.statusCode())
	}
	return out, nil
}

// PhaseHook adapts sequencer checkpoints into state machine events.
// New installs it on the sequencer; it is a no-op outside an invocation.
func (p *Controller) PhaseHook(ph capture.Phase) {
	m := p.machine.Load()
	if m == nil {
		return
	}
	if ph == capture.PhaseCapturing {
		p.push(m, "warm")
	}
}

func (p *Controller) run(ctx context.Context, m *fsm.FSM) *Outcome {
	if !p.captureFirst {
		if out := p.ensureConnected(ctx); out != nil {
			return out
		}
	}

	p.push(m, "trigger")

	frame, err := p.seq.Capture(ctx)
	if err != nil {
		if errors.Is(err, capture.ErrFrameTooLarge) {
			return &Outcome{Tag: OutcomeSizeLimit, Err: err,
				Message: "frame exceeds upload ceiling"}
		}
		return &Outcome{Tag: OutcomeSensorFailure, Err: err,
			Message: "frame acquisition failed"}
	}

	p.push(m, "captured")

	payload, err := p.enc.Encode(frame)
	// The payload owns a copy, so the frame goes back to the pool before
	// the upload, success or not.
	p.seq.Release(frame)
	if err != nil {
		return &Outcome{Tag: OutcomeAllocationFailure, Err: err,
			Message: "payload assembly failed"}
	}

	if p.captureFirst {
		if out := p.ensureConnected(ctx); out != nil {
			return out
		}
	}

	p.push(m, "encoded")

	resp, err := p.transport.Post(ctx, payload)
	if err != nil {
		return &Outcome{Tag: OutcomeTransportFailure, Err: err,
			Message: "upload failed"}
	}

	p.push(m, "uploaded")

	if resp.StatusCode != http.StatusOK {
		return &Outcome{
			Tag:     OutcomeServerError,
			Err:     fmt.Errorf("pipeline: backend status %d", resp.StatusCode),
			Message: serverMessage(resp),
		}
	}

	rec, err := detect.Parse(resp.Body)
	if err != nil {
		var srvErr *detect.ServerError
		if errors.As(err, &srvErr) {
			return &Outcome{Tag: OutcomeServerError, Err: err,
				Message: srvErr.Message}
		}
		return &Outcome{Tag: OutcomeParseFailure, Err: err,
			Message: "unreadable backend response"}
	}

	return &Outcome{Tag: OutcomeSuccess, Record: rec}
}

// ensureConnected checks reachability and attempts one bounded
// reconnect. A nil return means connected or no monitor configured.
func (p *Controller) ensureConnected(ctx context.Context) *Outcome {
	if p.conn == nil || p.conn.IsConnected() {
		return nil
	}
	p.logger.Warn("backend unreachable, reconnecting")
	if err := p.conn.Reconnect(ctx); err != nil {
		return &Outcome{
			Tag:     OutcomeTransportFailure,
			Err:     fmt.Errorf("%w: %v", ErrDisconnected, err),
			Message: "backend unreachable",
		}
	}
	return nil
}

// serverMessage extracts the backend's own error text from a non-200
// response when the body parses, falling back to the HTTP status.
func serverMessage(resp *upload.Response) string {
	if _, err := detect.Parse(resp.Body); err != nil {
		var srvErr *detect.ServerError
		if errors.As(err, &srvErr) && srvErr.Message != "Unknown" {
			return srvErr.Message
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
