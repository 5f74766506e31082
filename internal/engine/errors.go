package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal request failure.
type Kind int

const (
	KindDecode Kind = iota + 1
	KindFeatureExtraction
	KindModelInference
	// KindCanceled means the caller's context ended before a worker slot
	// was free. The context error is the wrapped cause.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindFeatureExtraction:
		return "feature extraction"
	case KindModelInference:
		return "model inference"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single failure type returned for a request that could not
// produce a result.
type Error struct {
	Kind Kind
	Op   string // "diagnose" or "forecast"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: KindDecode})
// works without comparing the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// KindOf returns the Kind carried by err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ErrBatchSize is returned when a batch is empty or larger than MaxBatch.
var ErrBatchSize = errors.New("batch size out of range")

// ErrInvalidRequest is wrapped by Request.Validate failures.
var ErrInvalidRequest = errors.New("invalid request")
