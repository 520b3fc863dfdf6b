package source

import (
	"errors"
	"fmt"
)

// UnavailableError marks an upstream failure: HTTP error status, timeout,
// or a malformed response body. It is recoverable per source; a probe run
// records it and moves on, an ingest run fails with it.
type UnavailableError struct {
	Source     string
	StatusCode int // 0 when the failure was not an HTTP status
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s unavailable: http %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps an upstream failure for the given source.
func Unavailable(sourceKey string, statusCode int, err error) error {
	return &UnavailableError{Source: sourceKey, StatusCode: statusCode, Err: err}
}

// IsUnavailable reports whether err is (or wraps) a source failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// StatusCodeOf extracts the upstream HTTP status from a source failure,
// or 0 when none applies.
func StatusCodeOf(err error) int {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
