// solenoidd drives the locker latch: it follows the backend's desired
// solenoid state and fires a hold pulse when the lid switch closes. On
// the workbench the lid switch is the 'l' key and the relay is logged.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bumpbox/go-bumpbox/internal/config"
	"github.com/bumpbox/go-bumpbox/internal/log"
	"github.com/bumpbox/go-bumpbox/pkg/solenoid"
	"github.com/bumpbox/go-bumpbox/pkg/trigger"
)

func main() {
	cfg := config.Load()
	log.Init(cfg.LogLevel)

	stateURL := cfg.SolenoidStateURL
	if stateURL == "" {
		stateURL = "http://localhost:8080/api/solenoid/state"
	}

	relayLog := log.Component("relay")
	relay := solenoid.RelayFunc(func(on bool) error {
		relayLog.Info("relay", "on", on)
		return nil
	})

	ctrl := solenoid.NewController(relay, stateURL,
		solenoid.WithLogger(log.Component("solenoid")),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events := make(chan trigger.Event, 1)
	go func() {
		if err := trigger.NewKeys('l', 'L').Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("lid switch source failed", "error", err)
			cancel()
		}
	}()

	presses := make(chan time.Time, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				select {
				case presses <- ev.At:
				default:
				}
			}
		}
	}()

	log.Info("solenoidd ready", "state_url", stateURL)

	if err := ctrl.Run(ctx, presses); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("controller stopped", "error", err)
		os.Exit(1)
	}
}
