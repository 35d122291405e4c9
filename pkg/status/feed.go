package status

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Feed subscribes to the backend's LED websocket channel and applies
// "on"/"off" pushes to a local LED, letting the backend drive the locker
// indicator remotely.
type Feed struct {
	url    string
	led    LED
	dialer *websocket.Dialer
	retry  time.Duration
	logger *slog.Logger
}

// NewFeed creates a Feed for a ws:// LED channel URL.
func NewFeed(url string, led LED) *Feed {
	return &Feed{
		url:    url,
		led:    led,
		dialer: websocket.DefaultDialer,
		retry:  5 * time.Second,
		logger: slog.Default().With("component", "status.feed"),
	}
}

// Run maintains the subscription until the context is canceled,
// redialing after connection loss.
func (f *Feed) Run(ctx context.Context) error {
	for {
		if err := f.serve(ctx); err != nil {
			f.logger.Warn("led feed disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retry):
		}
	}
}

func (f *Feed) serve(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.logger.Info("led feed connected", "url", f.url)

	// Close the connection when the context ends so ReadMessage
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		switch strings.TrimSpace(string(msg)) {
		case "on":
			f.led.Set(true)
		case "off":
			f.led.Set(false)
		default:
			f.logger.Debug("ignoring led command", "command", string(msg))
		}
	}
}
