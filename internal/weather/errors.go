package weather

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/i474232898/weather-widget/internal/fetch"
)

var (
	// ErrValidation marks caller input that cannot be used (blank query, non-finite coordinates).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a well-formed upstream answer with no candidates.
	ErrNotFound = errors.New("location not found")
	// ErrInvalidData marks an upstream answer missing required fields.
	ErrInvalidData = errors.New("invalid data")
	// ErrUpstream marks a failed or non-2xx upstream call.
	ErrUpstream = errors.New("upstream error")
	// ErrTimeout marks an upstream call that hit its deadline. Such errors also match ErrUpstream.
	ErrTimeout = fetch.ErrTimeout
)

// Kind is a coarse error class, usable by callers that need to map failures
// to user-facing text.
type Kind string

const (
	KindNone        Kind = ""
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindInvalidData Kind = "invalid_data"
	KindTimeout     Kind = "timeout"
	KindUpstream    Kind = "upstream"
)

// KindOf classifies err. An upstream HTTP 404 is reported as KindNotFound.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound), fetch.StatusCode(err) == http.StatusNotFound:
		return KindNotFound
	case errors.Is(err, ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindUpstream
	}
}

// classify wraps provider errors so every failure matches one sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidData) || errors.Is(err, ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
