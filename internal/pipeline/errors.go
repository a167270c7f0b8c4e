package pipeline

import (
	"errors"
	"net/http"
)

// Kind classifies batch-fatal pipeline failures. Per-item skips (bad URI,
// oversized image, low-confidence item) are never Kinds — they are recorded
// as outcomes and the batch continues.
type Kind string

const (
	// KindInvalidInput covers request-shape failures: wrong cardinality or a
	// malformed reference. Never retried.
	KindInvalidInput Kind = "invalid_input"
	// KindNoUsableImages means every reference in the batch was skipped.
	KindNoUsableImages Kind = "no_usable_images"
	// KindAuth means the model provider rejected our credentials.
	KindAuth Kind = "auth_failed"
	// KindCapacity means both primary and fallback models were out of capacity.
	KindCapacity Kind = "capacity_exhausted"
	// KindModelFailure is any other model-invocation failure.
	KindModelFailure Kind = "model_invocation_failed"
	// KindParseFailure means the model response violated the JSON-array
	// contract. Treated as a contract violation, not transient: not retried.
	KindParseFailure Kind = "response_parse_error"
)

// Error is a batch-fatal pipeline failure with its classification and the
// underlying cause attached.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps cause with a pipeline failure kind.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf returns the pipeline failure kind in err's chain, or "" if none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// HTTPStatus maps a pipeline failure to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindNoUsableImages:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindCapacity:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
