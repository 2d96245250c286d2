package claim

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType is the category of a failed claim call.
type ErrorType int

const (
	// ErrTypeNetwork is a transport failure other than a timeout
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout means the endpoint did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused means nothing listens at the claim URL
	ErrTypeConnectionRefused
	// ErrTypeHTTP means the endpoint answered with a status other than 200
	ErrTypeHTTP
	// ErrTypeRequest means the request could not be built
	ErrTypeRequest
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeRequest:
		return "Request Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by Client.Claim for every unsuccessful claim.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func classify(message string, err error) *Error {
	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &Error{Type: ErrTypeTimeout, Message: message, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &Error{Type: ErrTypeConnectionRefused, Message: message, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &Error{Type: ErrTypeTimeout, Message: message, Err: err}
	}

	return &Error{Type: ErrTypeNetwork, Message: message, Err: err}
}

func newHTTPError(status int) *Error {
	return &Error{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("claim endpoint returned status %d", status),
		StatusCode: status,
	}
}

// IsTimeout reports whether err is a claim timeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeTimeout
}

// IsHTTPError reports whether the endpoint answered with a non-200 status.
func IsHTTPError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeHTTP
}

// IsNetworkError reports whether the endpoint could not be reached at all.
func IsNetworkError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == ErrTypeNetwork || e.Type == ErrTypeTimeout || e.Type == ErrTypeConnectionRefused
}
