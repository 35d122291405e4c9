// bumpboxd is the locker-side capture daemon: it waits for a trigger,
// runs one capture through upload and interpretation, and signals the
// outcome on the status indicator.
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
	"github.com/bumpbox/go-bumpbox/pkg/capture"
	"github.com/bumpbox/go-bumpbox/pkg/encode"
	"github.com/bumpbox/go-bumpbox/pkg/netmon"
	"github.com/bumpbox/go-bumpbox/pkg/pipeline"
	"github.com/bumpbox/go-bumpbox/pkg/sensor"
	"github.com/bumpbox/go-bumpbox/pkg/status"
	"github.com/bumpbox/go-bumpbox/pkg/trigger"
	"github.com/bumpbox/go-bumpbox/pkg/upload"
)

func main() {
	cfg := config.Load()
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	led := consoleLED()
	sink := status.Multi{
		status.Console{Logger: log.Component("status")},
		status.NewBlinker(led),
	}

	cam, err := openSensor(cfg)
	if err != nil {
		// Sensor init failure is unrecoverable; hold the failure
		// pattern instead of limping on without a camera.
		log.Error("sensor init failed, halting", "error", err)
		haltWithSensorFailure(ctx, sink)
		os.Exit(1)
	}
	defer cam.Close()

	seq := capture.NewSequencer(cam, capture.NopLight{},
		capture.WithWarmup(cfg.WarmupDelay),
		capture.WithLogger(log.Component("capture")),
	)

	transport := upload.NewTransport(cfg.ServerURL,
		upload.WithTimeout(cfg.HTTPTimeout),
		upload.WithMock(cfg.MockDetect),
		upload.WithLogger(log.Component("upload")),
	)

	mon, err := netmon.NewMonitor(cfg.ServerURL,
		netmon.WithReconnectTimeout(cfg.ReconnectTimeout),
		netmon.WithLogger(log.Component("netmon")),
	)
	if err != nil {
		log.Error("invalid server url", "url", cfg.ServerURL, "error", err)
		os.Exit(1)
	}

	ctrl := pipeline.New(seq, encode.NewEncoder(), transport,
		pipeline.WithConnectivity(mon),
		pipeline.WithStatusSink(sink),
		pipeline.WithCaptureFirst(cfg.CaptureFirst),
		pipeline.WithLogger(log.Component("pipeline")),
	)

	if cfg.LEDFeedURL != "" {
		feed := status.NewFeed(cfg.LEDFeedURL, led)
		go feed.Run(ctx)
	}

	events := make(chan trigger.Event, 1)
	go func() {
		if err := trigger.NewKeys().Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("trigger source failed", "error", err)
			cancel()
		}
	}()

	log.Info("bumpboxd ready",
		"server", cfg.ServerURL,
		"mock", cfg.MockDetect,
		"camera", cfg.CameraDevice,
		"capture_first", cfg.CaptureFirst,
	)

	deb := trigger.NewDebouncer(cfg.DebounceWindow)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case ev := <-events:
			if !deb.Allow(ev.At) {
				continue
			}
			go func() {
				if _, err := ctrl.Trigger(ctx); errors.Is(err, pipeline.ErrBusy) {
					log.Debug("trigger ignored, invocation in flight")
				}
			}()
		}
	}
}

type closableSensor interface {
	sensor.Sensor
	Close() error
}

func openSensor(cfg *config.Config) (closableSensor, error) {
	tier := sensor.TierLow
	if cfg.HighMemory {
		tier = sensor.TierHigh
	}
	profile := sensor.ConfigForTier(tier)

	if cfg.CameraDevice < 0 {
		log.Info("using simulated sensor", "tier", tier.String())
		return sensor.NewSim(profile)
	}
	return sensor.OpenWebcam(cfg.CameraDevice, profile)
}

// consoleLED is the workbench indicator: state changes go to the log.
func consoleLED() status.LED {
	logger := log.Component("led")
	return status.LEDFunc(func(on bool) error {
		logger.Debug("led", "on", on)
		return nil
	})
}

// haltWithSensorFailure repeats the sensor-failure pattern until the
// process is interrupted, mirroring the device's init halt.
func haltWithSensorFailure(ctx context.Context, sink status.Sink) {
	for {
		sink.Signal(status.CodeSensorFailure)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}
