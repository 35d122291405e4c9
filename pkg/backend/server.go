// Package backend is the workbench stand-in for the BumpBox detection
// service: it accepts capture uploads, returns detection responses in
// the production wire contract, and publishes LED and solenoid state to
// connected devices.
package backend

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/bumpbox/go-bumpbox/pkg/detect"
)

// MaxUploadBytes is the upload ceiling enforced server-side, matching
// the device's own limit.
const MaxUploadBytes = 1_000_000

// detectResponse is the wire shape of a classification reply.
type detectResponse struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Detection *detect.Record `json:"detection,omitempty"`
}

// DetectionEvent is published on /ws/events for each processed upload.
type DetectionEvent struct {
	CaptureID string         `json:"captureId"`
	At        time.Time      `json:"at"`
	Bytes     int            `json:"bytes"`
	Detection *detect.Record `json:"detection,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Classifier maps an uploaded image to a detection record.
type Classifier func(image []byte) (*detect.Record, error)

// Server is the mock backend.
type Server struct {
	app    *fiber.App
	logger *slog.Logger

	classify Classifier

	solenoidMu sync.RWMutex
	solenoidOn bool

	ledHub   *hub
	eventHub *hub
	hubsOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithClassifier replaces the default catalog classifier.
func WithClassifier(c Classifier) Option {
	return func(s *Server) { s.classify = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer builds the fiber app and its websocket hubs.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:   slog.Default().With("component", "backend"),
		classify: catalogClassifier,
		ledHub:   newHub("led"),
		eventHub: newHub("events"),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "BumpBox Backend",
		DisableStartupMessage: true,
		BodyLimit:             MaxUploadBytes + 64*1024,
	})
	app.Use(cors.New())

	app.Post("/detect-object", s.handleDetect)

	api := app.Group("/api")
	api.Get("/solenoid/state", s.handleSolenoidState)
	api.Post("/solenoid/on", s.handleSolenoidSet(true))
	api.Post("/solenoid/off", s.handleSolenoidSet(false))
	api.Post("/led/:state", s.handleLED)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/led", websocket.New(s.handleFeed(s.ledHub)))
	app.Get("/ws/events", websocket.New(s.handleFeed(s.eventHub)))

	s.app = app
	return s
}

func (s *Server) startHubs() {
	s.hubsOnce.Do(func() {
		go s.ledHub.run()
		go s.eventHub.run()
	})
}

// Listen starts the hubs and serves on the given address.
func (s *Server) Listen(addr string) error {
	s.startHubs()
	s.logger.Info("backend listening", "addr", addr)
	return s.app.Listen(addr)
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App {
	s.startHubs()
	return s.app
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(detectResponse{
			Success: false, Error: "no image uploaded",
		})
	}
	if fh.Size > MaxUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(detectResponse{
			Success: false, Error: "image too large",
		})
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(detectResponse{
			Success: false, Error: "unreadable upload",
		})
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(detectResponse{
			Success: false, Error: "unreadable upload",
		})
	}

	captureID := uuid.NewString()
	s.logger.Info("capture received",
		"capture_id", captureID,
		"bytes", len(image),
		"mock", c.Query("mock") == "true")

	var rec *detect.Record
	if c.Query("mock") == "true" {
		rec = &detect.Record{
			Label:      "Mug",
			Category:   "Kitchenware",
			MinPrice:   5,
			MaxPrice:   15,
			Confidence: 87,
		}
	} else {
		rec, err = s.classify(image)
		if err != nil {
			s.publishEvent(DetectionEvent{
				CaptureID: captureID, At: time.Now(),
				Bytes: len(image), Error: err.Error(),
			})
			return c.JSON(detectResponse{Success: false, Error: err.Error()})
		}
	}

	s.publishEvent(DetectionEvent{
		CaptureID: captureID, At: time.Now(),
		Bytes: len(image), Detection: rec,
	})
	return c.JSON(detectResponse{Success: true, Detection: rec})
}

func (s *Server) handleSolenoidState(c *fiber.Ctx) error {
	s.solenoidMu.RLock()
	on := s.solenoidOn
	s.solenoidMu.RUnlock()
	return c.JSON(fiber.Map{"solenoidOn": on})
}

func (s *Server) handleSolenoidSet(on bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.solenoidMu.Lock()
		s.solenoidOn = on
		s.solenoidMu.Unlock()
		s.logger.Info("solenoid state set", "on", on)
		return c.JSON(fiber.Map{"solenoidOn": on})
	}
}

func (s *Server) handleLED(c *fiber.Ctx) error {
	state := c.Params("state")
	if state != "on" && state != "off" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unknown led state %q", state),
		})
	}
	s.ledHub.send([]byte(state))
	return c.JSON(fiber.Map{"led": state})
}

func (s *Server) handleFeed(h *hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		newWSClient(h, conn).serve()
	}
}

func (s *Server) publishEvent(ev DetectionEvent) {
	if err := s.eventHub.sendJSON(ev); err != nil {
		s.logger.Warn("event publish failed", "error", err)
	}
}

// jpegSOI starts every JPEG stream.
var jpegSOI = []byte{0xFF, 0xD8}

// catalog is the fixed classification table the mock classifier picks
// from, keyed by image size so repeated captures of the same frame stay
// stable.
var catalog = []detect.Record{
	{Label: "Mug", Category: "Kitchenware", MinPrice: 5, MaxPrice: 15, Confidence: 87},
	{Label: "Paperback Book", Category: "Media", MinPrice: 3, MaxPrice: 12, Confidence: 74},
	{Label: "Headphones", Category: "Electronics", MinPrice: 20, MaxPrice: 90, Confidence: 81},
	{Label: "Water Bottle", Category: "Sporting Goods", MinPrice: 8, MaxPrice: 25, Confidence: 69},
	{Label: "Desk Lamp", Category: "Home", MinPrice: 15, MaxPrice: 45, Confidence: 77},
}

// catalogClassifier is the default classifier: deterministic picks from
// a small catalog, rejecting anything that is not a JPEG.
func catalogClassifier(image []byte) (*detect.Record, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if !bytes.HasPrefix(image, jpegSOI) {
		return nil, fmt.Errorf("no object detected")
	}
	rec := catalog[len(image)%len(catalog)]
	return &rec, nil
}
