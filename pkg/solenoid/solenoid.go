// Package solenoid drives the locker's latch. The latch follows the
// backend's desired state by polling, and a local lid-switch press fires
// a timed hold pulse after the lid settles.
package solenoid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bumpbox/go-bumpbox/internal/httpc"
	"github.com/bumpbox/go-bumpbox/pkg/trigger"
)

// Timings carried over from the locker hardware.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultDebounce     = 50 * time.Millisecond
	DefaultSettle       = 500 * time.Millisecond
	DefaultHold         = 2 * time.Second
)

// Relay switches the latch coil.
type Relay interface {
	Set(on bool) error
}

// RelayFunc adapts a function to the Relay interface.
type RelayFunc func(on bool) error

func (f RelayFunc) Set(on bool) error { return f(on) }

// State is the backend's desired latch state.
type State struct {
	SolenoidOn bool `json:"solenoidOn"`
}

// Controller reconciles the relay against the backend and handles local
// lid-switch pulses.
type Controller struct {
	relay    Relay
	stateURL string
	client   *http.Client

	poll   time.Duration
	settle time.Duration
	hold   time.Duration
	deb    *trigger.Debouncer

	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger

	// desired is the last state the backend asked for; a hold pulse
	// restores it when the pulse ends.
	desired bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval sets how often the backend state is fetched.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.poll = d }
}

// WithSettle sets the lid settle delay before a pulse.
func WithSettle(d time.Duration) Option {
	return func(c *Controller) { c.settle = d }
}

// WithHold sets the pulse duration.
func WithHold(d time.Duration) Option {
	return func(c *Controller) { c.hold = d }
}

// WithDebounce sets the switch suppression window.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.deb = trigger.NewDebouncer(d) }
}

// WithClient replaces the HTTP client, for tests.
func WithClient(client *http.Client) Option {
	return func(c *Controller) { c.client = client }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a Controller over a relay and a backend state
// endpoint.
func NewController(relay Relay, stateURL string, opts ...Option) *Controller {
	c := &Controller{
		relay:    relay,
		stateURL: stateURL,
		client:   httpc.NewClient(httpc.DefaultTimeout),
		poll:     DefaultPollInterval,
		settle:   DefaultSettle,
		hold:     DefaultHold,
		deb:      trigger.NewDebouncer(DefaultDebounce),
		sleep:    sleepCtx,
		logger:   slog.Default().With("component", "solenoid"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run reconciles until the context ends. Switch edges arrive on presses;
// a poll failure keeps the last known state rather than dropping the
// latch.
func (c *Controller) Run(ctx context.Context, presses <-chan time.Time) error {
	c.Reconcile(ctx)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Reconcile(ctx)
		case at, ok := <-presses:
			if !ok {
				return nil
			}
			if !c.deb.Allow(at) {
				continue
			}
			if err := c.Pulse(ctx); err != nil {
				c.logger.Warn("pulse aborted", "error", err)
			}
		}
	}
}

// Reconcile fetches the backend state and applies it to the relay.
func (c *Controller) Reconcile(ctx context.Context) error {
	st, err := c.fetchState(ctx)
	if err != nil {
		c.logger.Warn("state poll failed", "error", err)
		return err
	}
	if st.SolenoidOn != c.desired {
		c.logger.Info("latch state changed", "on", st.SolenoidOn)
	}
	c.desired = st.SolenoidOn
	return c.relay.Set(c.desired)
}

// Pulse waits for the lid to settle, energizes the coil for the hold
// duration, then restores the backend's desired state.
func (c *Controller) Pulse(ctx context.Context) error {
	if err := c.sleep(ctx, c.settle); err != nil {
		return err
	}
	if err := c.relay.Set(true); err != nil {
		return fmt.Errorf("solenoid: energize: %w", err)
	}
	err := c.sleep(ctx, c.hold)
	if rerr := c.relay.Set(c.desired); rerr != nil {
		c.logger.Warn("latch restore failed", "error", rerr)
	}
	return err
}

func (c *Controller) fetchState(ctx context.Context) (*State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.stateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("solenoid: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solenoid: fetch state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("solenoid: state endpoint returned %d", resp.StatusCode)
	}

	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("solenoid: decode state: %w", err)
	}
	return &st, nil
}
