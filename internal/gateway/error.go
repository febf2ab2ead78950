package gateway

import (
	"errors"
	"fmt"
)

// GenericMessage is used when the remote API gives no message of its own.
const GenericMessage = "request failed"

// Error is a failed call to the remote API. Status is 0 for transport
// failures. FromServer reports whether Message came from the response body.
type Error struct {
	Status     int
	Message    string
	FromServer bool
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("gateway: %s (status %d): %v", e.Message, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MessageOr returns the server-provided message carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.FromServer && gwErr.Message != "" {
		return gwErr.Message
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status
	}
	return 0
}
