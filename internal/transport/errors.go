package transport

import "errors"

// Error is the uniform failure result of a transport call. StatusCode is the
// HTTP status for responses that arrived, and 0 when no response did.
type Error struct {
	StatusCode int
	Message    string
}

// Error returns the human-readable message unchanged so callers can surface
// remote messages verbatim.
func (e *Error) Error() string {
	return e.Message
}

// IsNetwork reports whether the failure happened before any HTTP response.
func (e *Error) IsNetwork() bool {
	return e.StatusCode == 0
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// StatusCode returns the status carried by err, or -1 when err is not a
// transport error.
func StatusCode(err error) int {
	if te, ok := AsError(err); ok {
		return te.StatusCode
	}
	return -1
}

// Reason keeps transport errors that carry a message and substitutes fallback
// for anything else, so callers can show the remote reason verbatim.
func Reason(err, fallback error) error {
	if te, ok := AsError(err); ok && te.Message != "" {
		return te
	}
	if errors.Is(err, fallback) {
		return err
	}
	return fallback
}
