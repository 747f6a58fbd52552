// Package errors defines the structured error type used across frontpage.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeCache      ErrorType = "cache"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	CodeMalformedPageSetup = "MALFORMED_PAGE_SETUP"
	CodePageNotConfigured  = "PAGE_NOT_CONFIGURED"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodePathTraversal      = "PATH_TRAVERSAL"
	CodeInternal           = "INTERNAL"
)

// Sentinels compared with errors.Is. Matching uses Type and Code only, so a
// wrapped error carrying extra context still matches.
var (
	// ErrMalformedPageSetup is returned when the page-type setup is a scalar
	// instead of a tree.
	ErrMalformedPageSetup = &PageError{Type: ErrorTypeRender, Code: CodeMalformedPageSetup, Message: "malformed page setup"}
	// ErrPageNotConfigured is returned when no PAGE object exists for the
	// requested type number.
	ErrPageNotConfigured = &PageError{Type: ErrorTypeConfig, Code: CodePageNotConfigured, Message: "page type not configured"}
)

// PageError is a structured error type with context.
type PageError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *PageError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PageError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PageError) Is(target error) bool {
	var t *PageError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext returns a copy of the error with a context value added.
func (e *PageError) WithContext(key string, value interface{}) *PageError {
	out := *e
	out.Context = make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		out.Context[k] = v
	}
	out.Context[key] = value

	return &out
}

// WithComponent returns a copy of the error tagged with component.
func (e *PageError) WithComponent(component string) *PageError {
	out := *e
	out.Component = component

	return &out
}

// WithCause returns a copy of the error wrapping cause.
func (e *PageError) WithCause(cause error) *PageError {
	out := *e
	out.Cause = cause

	return &out
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PageError {
	return &PageError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *PageError {
	return &PageError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PageError {
	return &PageError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PageError {
	return &PageError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewRenderError creates a rendering error.
func NewRenderError(code, message string, cause error) *PageError {
	return &PageError{
		Type:    ErrorTypeRender,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewCacheError creates a cache error. Cache errors are recoverable: the
// page can always be generated again.
func NewCacheError(code, message string, cause error) *PageError {
	return &PageError{
		Type:        ErrorTypeCache,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PageError {
	return &PageError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeSecurity
	}

	return false
}

// TypeOf returns the type of the first PageError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe.Type
	}

	return ""
}
