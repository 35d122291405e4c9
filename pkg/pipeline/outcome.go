package pipeline

import (
	"github.com/bumpbox/go-bumpbox/pkg/detect"
	"github.com/bumpbox/go-bumpbox/pkg/status"
)

// Tag classifies how an invocation ended.
type Tag int

const (
	OutcomeSuccess Tag = iota
	OutcomeSensorFailure
	OutcomeSizeLimit
	OutcomeAllocationFailure
	OutcomeTransportFailure
	OutcomeServerError
	OutcomeParseFailure
)

func (t Tag) String() string {
	switch t {
	case OutcomeSuccess:
		return "success"
	case OutcomeSensorFailure:
		return "sensor-failure"
	case OutcomeSizeLimit:
		return "size-limit"
	case OutcomeAllocationFailure:
		return "allocation-failure"
	case OutcomeTransportFailure:
		return "transport-failure"
	case OutcomeServerError:
		return "server-error"
	case OutcomeParseFailure:
		return "parse-failure"
	}
	return "unknown"
}

// statusCode maps an outcome onto the indicator codes. Server rejections
// and unreadable responses share the transport pattern; allocation
// failures share the size pattern since both mean the frame could not be
// shipped at its size.
func (t Tag) statusCode() status.Code {
	switch t {
	case OutcomeSuccess:
		return status.CodeSuccess
	case OutcomeSensorFailure:
		return status.CodeSensorFailure
	case OutcomeSizeLimit, OutcomeAllocationFailure:
		return status.CodeSizeExceeded
	}
	return status.CodeTransportFailure
}

// Outcome is the result of one pipeline invocation. Record is set only
// on success; Err carries the underlying failure otherwise.
type Outcome struct {
	Tag       Tag
	CaptureID string
	Record    *detect.Record
	Message   string
	Err       error
}

// OK reports whether the invocation produced a classification.
func (o *Outcome) OK() bool {
	return o.Tag == OutcomeSuccess
}
