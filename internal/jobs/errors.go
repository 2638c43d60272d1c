package jobs

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSourceTimeout     = errors.New("source timed out")
	ErrSourceParse       = errors.New("source returned unparsable content")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrStore             = errors.New("store failure")
)

// SourceError is a failure reported by one source adapter.
// It matches both its Kind and the underlying error with errors.Is.
type SourceError struct {
	Source string
	Kind   error
	Err    error
}

func NewSourceError(source string, kind, err error) *SourceError {
	return &SourceError{Source: source, Kind: kind, Err: err}
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Classify turns any error returned from a source call into a SourceError.
// Deadline errors become timeouts; unknown errors mean the source is unavailable.
func Classify(source string, err error) *SourceError {
	if err == nil {
		return nil
	}

	var se *SourceError
	if errors.As(err, &se) {
		return se
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrSourceTimeout):
		return NewSourceError(source, ErrSourceTimeout, err)
	case errors.Is(err, ErrSourceParse):
		return NewSourceError(source, ErrSourceParse, err)
	default:
		return NewSourceError(source, ErrSourceUnavailable, err)
	}
}

// KindName is the short identifier used in responses and logs.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrSourceTimeout):
		return "timeout"
	case errors.Is(err, ErrSourceParse):
		return "parse"
	case errors.Is(err, ErrSourceUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}
