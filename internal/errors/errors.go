package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.Code == code {
				return true
			}
			err = appErr.Cause
			continue
		}
		return false
	}
	return false
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDataLoad        = "DATA_LOAD_ERROR"
	CodeColumnMapping   = "COLUMN_MAPPING_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeComputation     = "COMPUTATION_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DataLoadError(message string) *AppError {
	return New(CodeDataLoad, message)
}

func ColumnMappingError(message string) *AppError {
	return New(CodeColumnMapping, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func ComputationError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeComputation,
		Message: message,
		Cause:   cause,
	}
}

func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Cause:   cause,
	}
}
