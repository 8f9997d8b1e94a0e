package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies failures that happen outside a request, such as
// reading a dataset or loading configuration.
type ErrorType string

const (
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError wraps a cause with its type and the context it happened in.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext records key on the error and returns it for chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Status is the HTTP status an AppError of this type surfaces as.
func (t ErrorType) Status() int {
	switch t {
	case ErrTypeParsing:
		return http.StatusUnprocessableEntity
	case ErrTypeStorage:
		return http.StatusServiceUnavailable
	case ErrTypeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewParsingError is a dataset that was read but could not be decoded.
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError is a dataset source that could not be read.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationError is a local input rejected before any work starts.
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewConfigError is a configuration that failed to load or validate.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the type of the outermost AppError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "", false
	}
	return appErr.Type, true
}
