// Package netmon is the connectivity collaborator: it answers whether
// the backend is reachable and blocks on reconnect attempts within a
// bounded window, standing in for the firmware's Wi-Fi association.
package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults mirroring the firmware's Wi-Fi timings.
const (
	DefaultProbeTimeout     = 2 * time.Second
	DefaultReconnectTimeout = 15 * time.Second
)

// Connectivity is what the pipeline consults before uploading.
type Connectivity interface {
	IsConnected() bool
	Reconnect(ctx context.Context) error
}

// Dialer mirrors net.Dialer.DialContext, injected for tests.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Monitor probes the backend host over TCP.
type Monitor struct {
	addr   string
	probe  time.Duration
	window time.Duration
	dial   Dialer
	logger *slog.Logger

	mu        sync.Mutex
	connected bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProbeTimeout bounds a single reachability probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.probe = d }
}

// WithReconnectTimeout bounds a whole Reconnect attempt.
func WithReconnectTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.window = d }
}

// WithDialer replaces the TCP dialer, for tests.
func WithDialer(d Dialer) Option {
	return func(m *Monitor) { m.dial = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor creates a Monitor probing the host of the given URL.
func NewMonitor(rawURL string, opts ...Option) (*Monitor, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("netmon: parse url: %w", err)
	}
	host := u.Host
	if host == "" {
		return nil, fmt.Errorf("netmon: url %q has no host", rawURL)
	}
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" || u.Scheme == "wss" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	m := &Monitor{
		addr:   host,
		probe:  DefaultProbeTimeout,
		window: DefaultReconnectTimeout,
		dial:   (&net.Dialer{}).DialContext,
		logger: slog.Default().With("component", "netmon"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IsConnected runs one reachability probe and reports the result.
func (m *Monitor) IsConnected() bool {
	err := m.check(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = err == nil
	return m.connected
}

// Reconnect retries the probe under exponential backoff until it
// succeeds, the window elapses, or the context ends.
func (m *Monitor) Reconnect(ctx context.Context) error {
	m.logger.Info("reconnecting", "addr", m.addr, "window", m.window)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = m.window

	err := backoff.Retry(func() error {
		return m.check(ctx)
	}, backoff.WithContext(bo, ctx))

	m.mu.Lock()
	m.connected = err == nil
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("netmon: reconnect to %s: %w", m.addr, err)
	}
	m.logger.Info("connected", "addr", m.addr)
	return nil
}

func (m *Monitor) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.probe)
	defer cancel()

	conn, err := m.dial(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

var _ Connectivity = (*Monitor)(nil)
