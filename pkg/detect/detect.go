// Package detect interprets the backend's detection response. The
// backend contract tolerates partial responses, so missing detection
// fields fall back to defaults instead of failing the invocation.
package detect

import (
	"encoding/json"
	"fmt"
)

// unknown is the default for absent string fields, matching the backend
// contract.
const unknown = "Unknown"

// Record is one typed classification result.
type Record struct {
	Label      string `json:"label"`
	Category   string `json:"category"`
	MinPrice   int    `json:"minPrice"`
	MaxPrice   int    `json:"maxPrice"`
	Confidence int    `json:"confidence"`
}

// ServerError means the backend answered with a well-formed rejection.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("detect: server error: %s", e.Message)
}

// ParseError means the response text was not a well-formed document. Raw
// carries the offending text for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("detect: malformed response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads a response body into a Record.
//
// Malformed JSON yields a *ParseError. A well-formed document whose
// success flag is false or absent yields a *ServerError with the
// server's message ("Unknown" when absent). On success, missing
// detection fields default to "Unknown" / 0 rather than failing.
func Parse(body []byte) (*Record, error) {
	var doc struct {
		Success   bool   `json:"success"`
		Error     string `json:"error"`
		Detection *struct {
			Label      string `json:"label"`
			Category   string `json:"category"`
			MinPrice   int    `json:"minPrice"`
			MaxPrice   int    `json:"maxPrice"`
			Confidence int    `json:"confidence"`
		} `json:"detection"`
	}

	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{Raw: string(body), Err: err}
	}

	if !doc.Success {
		msg := doc.Error
		if msg == "" {
			msg = unknown
		}
		return nil, &ServerError{Message: msg}
	}

	rec := &Record{Label: unknown, Category: unknown}
	if d := doc.Detection; d != nil {
		if d.Label != "" {
			rec.Label = d.Label
		}
		if d.Category != "" {
			rec.Category = d.Category
		}
		rec.MinPrice = d.MinPrice
		rec.MaxPrice = d.MaxPrice
		rec.Confidence = d.Confidence
	}
	return rec, nil
}
