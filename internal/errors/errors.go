package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeToolFailed ErrorType = "TOOL_FAILED"
	ErrorTypeIO         ErrorType = "IO_ERROR"
	ErrorTypeCanceled   ErrorType = "CANCELED"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
)

// Process exit codes reported by the command line tools.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitToolFailed = 3
	ExitCanceled   = 130
)

// AppError represents an application error with additional context.
type AppError struct {
	Type     ErrorType              `json:"type"`
	Message  string                 `json:"message"`
	Code     string                 `json:"code,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	ExitCode int                    `json:"-"`
	Err      error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// HTTPStatus maps the error type to a status code for the status server.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError.
func New(errType ErrorType, message string, exitCode int) *AppError {
	return &AppError{
		Type:     errType,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, exitCode int) *AppError {
	return &AppError{
		Type:     errType,
		Message:  message,
		ExitCode: exitCode,
		Err:      err,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, ExitUsage)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), ExitFailure)
}

// NewToolError reports an external tool that exited with a non-zero code.
func NewToolError(tool string, exitCode int, err error) *AppError {
	return Wrap(err, ErrorTypeToolFailed, fmt.Sprintf("%s exited with code %d", tool, exitCode), ExitToolFailed).
		WithDetails(map[string]interface{}{"tool": tool, "exit_code": exitCode})
}

// WrapIOError wraps a filesystem error.
func WrapIOError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeIO, message, ExitFailure)
}

// NewCanceledError creates a cancellation error.
func NewCanceledError(err error) *AppError {
	return Wrap(err, ErrorTypeCanceled, "run canceled", ExitCanceled)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, ExitFailure)
}

// WrapInternalError wraps an error as internal error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, ExitFailure)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if appErr, ok := GetAppError(err); ok && appErr.ExitCode != 0 {
		return appErr.ExitCode
	}
	return ExitFailure
}
