package errors

import "fmt"

// ErrorType represents different types of errors that can occur in the
// acquisition pipeline
type ErrorType string

const (
	// ErrorTypeEngineUnavailable means a search backend could not be
	// reached; the engine is skipped, the job continues
	ErrorTypeEngineUnavailable ErrorType = "engine_unavailable"
	// ErrorTypeTransientFetch covers timeouts, 429 and 5xx responses
	ErrorTypeTransientFetch ErrorType = "transient_fetch"
	// ErrorTypePermanentFetch covers 4xx responses that will not change
	ErrorTypePermanentFetch ErrorType = "permanent_fetch"
	// ErrorTypeMalformedPayload means the response body is not a valid
	// image payload
	ErrorTypeMalformedPayload ErrorType = "malformed_payload"
	// ErrorTypeFilesystem covers directory and file I/O failures
	ErrorTypeFilesystem ErrorType = "filesystem"
	// ErrorTypeConversion covers decode/encode failures in the converter
	ErrorTypeConversion ErrorType = "conversion"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error represents a typed pipeline error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error without an HTTP status code
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewWithCode creates a typed error carrying an HTTP status code
func NewWithCode(errorType ErrorType, message string, code int) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransientFetch:
		return true
	case ErrorTypeEngineUnavailable, ErrorTypePermanentFetch,
		ErrorTypeMalformedPayload, ErrorTypeFilesystem, ErrorTypeConversion:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// TypeForStatusCode maps an HTTP status code to an error type
func TypeForStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeTransientFetch
	case statusCode == 429 || statusCode >= 500:
		return ErrorTypeTransientFetch
	case statusCode >= 400:
		return ErrorTypePermanentFetch
	default:
		return ErrorTypeUnknown
	}
}
