package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrTagAbsent         = sterrors.New("fixflow: tag not present")
	ErrIndexOutOfRange   = sterrors.New("fixflow: occurrence index out of range")
	ErrTypeMismatch      = sterrors.New("fixflow: field type mismatch")
	ErrMalformedValue    = sterrors.New("fixflow: malformed field value")
	ErrMessageRequired   = sterrors.New("fixflow: message is required")
	ErrPublisherRequired = sterrors.New("fixflow: publisher is required")
	ErrTopicRequired     = sterrors.New("fixflow: topic is required")
	ErrConfigRequired    = sterrors.New("fixflow: configuration is required")
	ErrLoggerRequired    = sterrors.New("fixflow: logger is required")
	ErrEngineRequired    = sterrors.New("fixflow: engine is required")

	ErrListenerRequired   = sterrors.New("fixflow: listener is required")
	ErrListenerIDRequired = sterrors.New("fixflow: listener id is required")

	ErrBeginStringRequired = sterrors.New("fixflow: begin string is required")
	ErrCompIDRequired      = sterrors.New("fixflow: comp id is required")
)

// FieldError describes why a lookup against a frozen message produced no value.
// It matches ErrTagAbsent, ErrIndexOutOfRange or ErrTypeMismatch through errors.Is.
type FieldError struct {
	Tag   uint32
	Index int
	// Count is the number of occurrences stored under Tag.
	Count  int
	Reason error
	// Want and Got hold the kind names for a type mismatch.
	Want string
	Got  string
}

func (e *FieldError) Error() string {
	switch e.Reason {
	case ErrTagAbsent:
		return fmt.Sprintf("%v: tag %d", e.Reason, e.Tag)
	case ErrIndexOutOfRange:
		return fmt.Sprintf("%v: tag %d index %d (occurrences: %d)", e.Reason, e.Tag, e.Index, e.Count)
	case ErrTypeMismatch:
		return fmt.Sprintf("%v: tag %d index %d holds %s, want %s", e.Reason, e.Tag, e.Index, e.Got, e.Want)
	default:
		return fmt.Sprintf("fixflow: field error on tag %d: %v", e.Tag, e.Reason)
	}
}

func (e *FieldError) Unwrap() error {
	return e.Reason
}

// DecodeError reports raw wire bytes that do not parse as the descriptor's kind.
type DecodeError struct {
	Tag  uint32
	Kind string
	Raw  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: tag %d as %s %q: %v", ErrMalformedValue, e.Tag, e.Kind, e.Raw, e.Err)
	}
	return fmt.Sprintf("%v: tag %d as %s %q", ErrMalformedValue, e.Tag, e.Kind, e.Raw)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedValue
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ConfigValidationError wraps configuration problems reported by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "fixflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
