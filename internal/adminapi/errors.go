package adminapi

import (
	"errors"
	"fmt"
)

// ErrUnauthorized means the upstream rejected the bearer token (HTTP 401).
// The session has already been expired when this is returned.
var ErrUnauthorized = errors.New("admin session rejected, login required")

// TransportError covers network failures and non-2xx responses that carry
// no structured error body.
type TransportError struct {
	Op     string
	Status int // 0 when the request never got a response
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: upstream status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError is a structured {code, message} error from the upstream.
type ApplicationError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// UserMessage returns the server-provided message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var appErr *ApplicationError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// IsCode reports whether err is an ApplicationError with the given code.
func IsCode(err error, code string) bool {
	var appErr *ApplicationError
	return errors.As(err, &appErr) && appErr.Code == code
}
