// Package errors provides unified error handling for the capture pipeline.
// Every failure crossing a component boundary carries a Code so the
// orchestrator can tell transient degradation from session-fatal conditions.
package errors

import "fmt"

// Code classifies pipeline failures.
type Code string

const (
	// Unknown is the zero classification.
	Unknown Code = "UNKNOWN"
	// Internal is an unexpected programming or runtime error.
	Internal Code = "INTERNAL"
	// ConfigInvalid means configuration could not be parsed or validated.
	ConfigInvalid Code = "CONFIG_INVALID"
	// DeviceUnavailable means no audio input device is accessible.
	DeviceUnavailable Code = "DEVICE_UNAVAILABLE"
	// EngineUnavailable means an inference engine cannot be reached or started.
	EngineUnavailable Code = "ENGINE_UNAVAILABLE"
	// EngineTimeout means a single engine invocation exceeded its ceiling.
	EngineTimeout Code = "ENGINE_TIMEOUT"
	// SummaryFailed means summarization failed after a successful recording.
	SummaryFailed Code = "SUMMARY_FAILED"
	// StorageFailed means a durable artifact could not be written.
	StorageFailed Code = "STORAGE_FAILED"
	// Cancelled means the operation was cancelled by session teardown.
	Cancelled Code = "CANCELLED"
	// NotFound means a requested session does not exist.
	NotFound Code = "NOT_FOUND"
	// InvalidState means a lifecycle request is not valid in the current state.
	InvalidState Code = "INVALID_STATE"
)

// AppError is the base error type with structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of err, walking the cause chain. Non-AppError
// values classify as Unknown.
func CodeOf(err error) Code {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Unknown
}

// IsCode checks if an error (or any error in its cause chain) has a specific code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case EngineUnavailable, EngineTimeout:
		return true
	default:
		return false
	}
}

// IsSessionFatal reports whether the error must terminate the whole session
// rather than degrade it. Only device loss and storage failures qualify.
func IsSessionFatal(err error) bool {
	switch CodeOf(err) {
	case DeviceUnavailable, StorageFailed:
		return true
	default:
		return false
	}
}
