package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the classes of failure the sync pipeline distinguishes
type ErrorType string

const (
	ErrorTypeAuth             ErrorType = "auth"
	ErrorTypeRateLimit        ErrorType = "rate_limit"
	ErrorTypeTransientNetwork ErrorType = "transient_network"
	ErrorTypePermanentMedia   ErrorType = "permanent_media"
	ErrorTypeRender           ErrorType = "render"
	ErrorTypePersistence      ErrorType = "persistence"
	ErrorTypeParsing          ErrorType = "parsing"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeUnknown          ErrorType = "unknown"
)

// Error represents a classified error with optional HTTP status and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int

	// RetryAfter is set for rate limit errors when the remote told us how long to wait.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuth creates an authentication error. Auth errors abort a sync run.
func NewAuth(code int, message string) *Error {
	return &Error{Type: ErrorTypeAuth, Code: code, Message: message}
}

// NewRateLimited creates a rate limit error carrying the server-advised wait
func NewRateLimited(retryAfter time.Duration, message string) *Error {
	return &Error{Type: ErrorTypeRateLimit, Code: 429, Message: message, RetryAfter: retryAfter}
}

// NewTransient creates a retryable network error
func NewTransient(code int, message string, cause error) *Error {
	return &Error{Type: ErrorTypeTransientNetwork, Code: code, Message: message, Err: cause}
}

// NewPermanentMedia creates an error for a media asset that will never succeed
func NewPermanentMedia(code int, message string, cause error) *Error {
	return &Error{Type: ErrorTypePermanentMedia, Code: code, Message: message, Err: cause}
}

// NewRender wraps a rendering failure
func NewRender(message string, cause error) *Error {
	return &Error{Type: ErrorTypeRender, Message: message, Err: cause}
}

// NewPersistence wraps a manifest or filesystem write failure
func NewPersistence(message string, cause error) *Error {
	return &Error{Type: ErrorTypePersistence, Message: message, Err: cause}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown if err is not classified
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err (or anything it wraps) is an *Error of the given type
func IsType(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}

// RetryAfterOf returns the advised wait of a rate limit error
func RetryAfterOf(err error) (time.Duration, bool) {
	var e *Error
	if stderrors.As(err, &e) && e.Type == ErrorTypeRateLimit {
		return e.RetryAfter, true
	}
	return 0, false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransientNetwork, ErrorTypeRateLimit:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypePermanentMedia:
		return false
	default:
		return false
	}
}

// IsFatal reports whether err must abort the whole sync run
func IsFatal(err error) bool {
	return IsType(err, ErrorTypeAuth)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 408, 429:
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
