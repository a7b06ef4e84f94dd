package requestcache

import (
	"errors"
	"fmt"
)

// ErrUpstream matches every *UpstreamError via errors.Is.
var ErrUpstream = errors.New("upstream request failed")

// UpstreamError is returned when the transport call does not complete
// successfully: network failure, non-success status or malformed JSON.
type UpstreamError struct {
	// StatusCode is the HTTP status, or 0 when no response was received
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := "upstream request failed"
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// statusCoder is implemented by transport errors that know the HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// asUpstreamError wraps a transport error. Errors that already are
// *UpstreamError are returned unchanged.
func asUpstreamError(err error) *UpstreamError {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}

	upErr := &UpstreamError{Err: err}
	var sc statusCoder
	if errors.As(err, &sc) {
		upErr.StatusCode = sc.HTTPStatus()
	}
	return upErr
}
