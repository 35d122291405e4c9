// Package encode assembles the multipart upload body. The wire format is
// a fixed three-chunk body (header, raw JPEG, footer) terminated by
// length, so the body is built by hand rather than with mime/multipart,
// which would not guarantee the exact boundary token or byte layout.
package encode

import (
	"errors"
	"fmt"

	"github.com/bumpbox/go-bumpbox/pkg/sensor"
)

// Wire constants the backend expects.
const (
	// Boundary is the fixed multipart boundary token. The image bytes
	// are carried verbatim and the body is terminated by length, so the
	// token never needs to be scanned for inside the payload.
	Boundary = "----BumpBoxCamBoundary"

	fieldName = "image"
	fileName  = "capture.jpg"
)

var (
	header = []byte("--" + Boundary + "\r\n" +
		`Content-Disposition: form-data; name="` + fieldName + `"; filename="` + fileName + `"` + "\r\n" +
		"Content-Type: image/jpeg\r\n\r\n")
	footer = []byte("\r\n--" + Boundary + "--\r\n")
)

// ErrBodyBudget is returned when the assembled body would exceed the
// encoder's memory budget. The caller still owns the frame and must
// release it.
var ErrBodyBudget = errors.New("encode: body exceeds memory budget")

// ContentType returns the Content-Type header value for an encoded body.
func ContentType() string {
	return "multipart/form-data; boundary=" + Boundary
}

// Overhead is the multipart framing added around the image bytes.
func Overhead() int {
	return len(header) + len(footer)
}

// Payload is one finished wire body. It owns its buffer and lives only
// for the duration of one upload attempt.
type Payload struct {
	Data []byte
}

// Len returns the body length.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}

// Encoder builds payloads within a fixed memory budget.
type Encoder struct {
	budget int
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithBodyBudget caps the assembled body size in bytes.
func WithBodyBudget(n int) Option {
	return func(e *Encoder) { e.budget = n }
}

// NewEncoder creates an Encoder. The default budget admits any frame up
// to the transport ceiling plus multipart overhead.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{budget: 1_000_000 + Overhead()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode wraps the frame's bytes in multipart framing. The output length
// is exactly header + image + footer; the image bytes are copied
// verbatim, never re-encoded. The frame is read only; releasing it
// remains the caller's job on every path.
func (e *Encoder) Encode(f *sensor.Frame) (*Payload, error) {
	total := len(header) + f.Len() + len(footer)
	if e.budget > 0 && total > e.budget {
		return nil, fmt.Errorf("encode: %d byte body over %d budget: %w",
			total, e.budget, ErrBodyBudget)
	}

	body := make([]byte, total)
	n := copy(body, header)
	n += copy(body[n:], f.Data)
	copy(body[n:], footer)

	return &Payload{Data: body}, nil
}
