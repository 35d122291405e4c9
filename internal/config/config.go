// Package config provides configuration for go-bumpbox commands.
// Values come from the environment, optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults carried over from the locker firmware.
const (
	DefaultServerURL        = "http://localhost:8080/detect-object"
	DefaultHTTPTimeout      = 15 * time.Second
	DefaultReconnectTimeout = 15 * time.Second
	DefaultWarmupDelay      = 150 * time.Millisecond
	DefaultDebounceWindow   = 300 * time.Millisecond
)

// Config holds the runtime configuration for the device daemon.
type Config struct {
	// ServerURL is the detect-object endpoint of the backend.
	ServerURL string

	// MockDetect asks the backend for its mock classifier instead of
	// the real vision service.
	MockDetect bool

	// HTTPTimeout bounds a single upload attempt.
	HTTPTimeout time.Duration

	// ReconnectTimeout bounds a reconnect attempt before a trigger is
	// declared undeliverable.
	ReconnectTimeout time.Duration

	// WarmupDelay is how long illumination stabilizes before capture.
	WarmupDelay time.Duration

	// DebounceWindow suppresses repeat trigger events.
	DebounceWindow time.Duration

	// HighMemory selects the high memory tier for the sensor
	// (full resolution, double buffering).
	HighMemory bool

	// CameraDevice is the capture device index; negative selects the
	// simulated sensor.
	CameraDevice int

	// CaptureFirst reproduces the original firmware order: capture and
	// encode before checking connectivity.
	CaptureFirst bool

	// LEDFeedURL is the backend websocket pushing LED on/off commands.
	// Empty disables the feed.
	LEDFeedURL string

	// SolenoidStateURL is the backend solenoid state endpoint.
	// Empty disables the solenoid controller.
	SolenoidStateURL string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() *Config {
	godotenv.Load()

	return &Config{
		ServerURL:        getenv("BUMPBOX_SERVER_URL", DefaultServerURL),
		MockDetect:       getbool("BUMPBOX_MOCK", false),
		HTTPTimeout:      getms("BUMPBOX_HTTP_TIMEOUT_MS", DefaultHTTPTimeout),
		ReconnectTimeout: getms("BUMPBOX_RECONNECT_TIMEOUT_MS", DefaultReconnectTimeout),
		WarmupDelay:      getms("BUMPBOX_FLASH_WARMUP_MS", DefaultWarmupDelay),
		DebounceWindow:   getms("BUMPBOX_DEBOUNCE_MS", DefaultDebounceWindow),
		HighMemory:       getbool("BUMPBOX_HIGH_MEMORY", true),
		CameraDevice:     getint("BUMPBOX_CAMERA_DEVICE", -1),
		CaptureFirst:     getbool("BUMPBOX_CAPTURE_FIRST", false),
		LEDFeedURL:       os.Getenv("BUMPBOX_LED_FEED_URL"),
		SolenoidStateURL: os.Getenv("BUMPBOX_SOLENOID_STATE_URL"),
		LogLevel:         getenv("BUMPBOX_LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getms(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
