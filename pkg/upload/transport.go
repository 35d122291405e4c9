// Package upload ships an encoded body to the detection backend as a
// single bounded POST. It performs no retries; whether a failed attempt
// is retried on a later trigger is the pipeline's call.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bumpbox/go-bumpbox/internal/httpc"
	"github.com/bumpbox/go-bumpbox/pkg/encode"
)

// DefaultTimeout bounds one upload attempt.
const DefaultTimeout = 15 * time.Second

// Transport failure codes.
const (
	CodeTimeout    = "timeout"
	CodeRefused    = "refused"
	CodeConnection = "connection"
	CodeRead       = "read"
)

// TransportError is a network-level failure: the request never completed.
// HTTP error statuses are not transport errors; they come back as a
// Response with a readable body.
type TransportError struct {
	Code string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upload [%s]: %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Response is the raw backend reply, surfaced whole: status and body
// both belong to the caller, whatever the status was.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport posts encoded bodies to a fixed endpoint.
type Transport struct {
	endpoint string
	mock     bool
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.client = httpc.NewClient(d) }
}

// WithMock requests the backend's mock classifier via query parameter.
func WithMock(mock bool) Option {
	return func(t *Transport) { t.mock = mock }
}

// WithClient replaces the HTTP client, for tests.
func WithClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// NewTransport creates a Transport for the given detect endpoint.
func NewTransport(endpoint string, opts ...Option) *Transport {
	t := &Transport{
		endpoint: endpoint,
		client:   httpc.NewClient(DefaultTimeout),
		logger:   slog.Default().With("component", "upload"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Post sends one encoded body and returns the raw response.
func (t *Transport) Post(ctx context.Context, p *encode.Payload) (*Response, error) {
	target, err := t.targetURL()
	if err != nil {
		return nil, &TransportError{Code: CodeConnection, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(p.Data))
	if err != nil {
		return nil, &TransportError{Code: CodeConnection, Err: err}
	}
	req.Header.Set("Content-Type", encode.ContentType())
	req.ContentLength = int64(p.Len())

	t.logger.Debug("posting capture", "url", target, "bytes", p.Len())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Code: classify(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Code: CodeRead, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("backend returned error status",
			"status", resp.StatusCode, "bytes", len(body))
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (t *Transport) targetURL() (string, error) {
	if !t.mock {
		return t.endpoint, nil
	}
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("mock", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CodeTimeout
	}
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Op == "dial" {
		return CodeRefused
	}
	return CodeConnection
}
