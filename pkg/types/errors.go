package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
)

// Error codes used across the admission and radiology core
const (
	ErrCodeUnknownPatientType      = "UNKNOWN_PATIENT_TYPE"
	ErrCodeUnknownModality         = "UNKNOWN_MODALITY"
	ErrCodeMissingRequiredField    = "MISSING_REQUIRED_FIELD"
	ErrCodeMalformedMessage        = "MALFORMED_MESSAGE"
	ErrCodeExternalToolFailure     = "EXTERNAL_TOOL_FAILURE"
	ErrCodeConcurrentStateConflict = "CONCURRENT_STATE_CONFLICT"
	ErrCodeInvalidInput            = "INVALID_INPUT"
	ErrCodeDuplicateEmail          = "DUPLICATE_EMAIL"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// CoreError represents a structured error in the Quantum Care core
type CoreError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same error code, so callers can
// match against the sentinel values below with errors.Is.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is matching. Never returned directly.
var (
	ErrUnknownPatientType      = &CoreError{Type: ErrorTypeValidation, Code: ErrCodeUnknownPatientType}
	ErrUnknownModality         = &CoreError{Type: ErrorTypeValidation, Code: ErrCodeUnknownModality}
	ErrMissingRequiredField    = &CoreError{Type: ErrorTypeValidation, Code: ErrCodeMissingRequiredField}
	ErrMalformedMessage        = &CoreError{Type: ErrorTypeValidation, Code: ErrCodeMalformedMessage}
	ErrExternalToolFailure     = &CoreError{Type: ErrorTypeExternal, Code: ErrCodeExternalToolFailure}
	ErrConcurrentStateConflict = &CoreError{Type: ErrorTypeConflict, Code: ErrCodeConcurrentStateConflict}
	ErrNotFound                = &CoreError{Type: ErrorTypeNotFound, Code: ErrCodeNotFound}
	ErrDuplicateEmail          = &CoreError{Type: ErrorTypeConflict, Code: ErrCodeDuplicateEmail}
)

// NewUnknownPatientTypeError reports a patient type outside the classifier table
func NewUnknownPatientTypeError(patientType string) *CoreError {
	return &CoreError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeUnknownPatientType,
		Message: fmt.Sprintf("unknown patient type %q", patientType),
		Details: map[string]interface{}{"patient_type": patientType},
	}
}

// NewUnknownModalityError reports an exam type or modality code with no counter
func NewUnknownModalityError(modality string) *CoreError {
	return &CoreError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeUnknownModality,
		Message: fmt.Sprintf("unknown modality %q", modality),
		Details: map[string]interface{}{"modality": modality},
	}
}

// NewMissingFieldError reports an absent required field
func NewMissingFieldError(field string) *CoreError {
	return &CoreError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("required field %s is missing", field),
		Details: map[string]interface{}{"field": field},
	}
}

// NewMalformedMessageError reports an HL7 message that cannot be decoded
func NewMalformedMessageError(message string) *CoreError {
	return &CoreError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeMalformedMessage,
		Message: message,
	}
}

// NewExternalToolError wraps a collaborator failure, keeping its diagnostic text verbatim
func NewExternalToolError(tool, diagnostic string, cause error) *CoreError {
	return &CoreError{
		Type:    ErrorTypeExternal,
		Code:    ErrCodeExternalToolFailure,
		Message: fmt.Sprintf("%s failed: %s", tool, diagnostic),
		Details: map[string]interface{}{"tool": tool, "diagnostic": diagnostic},
		Cause:   cause,
	}
}

// NewConflictError reports a guarded write that matched no rows
func NewConflictError(message string, details map[string]interface{}) *CoreError {
	return &CoreError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeConcurrentStateConflict,
		Message: message,
		Details: details,
	}
}

// NewDuplicateEmailError reports a registration reusing a known email address
func NewDuplicateEmailError(email string) *CoreError {
	return &CoreError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeDuplicateEmail,
		Message: "Email already exists",
		Details: map[string]interface{}{"email": email},
	}
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *CoreError {
	return &CoreError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *CoreError {
	return &CoreError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *CoreError {
	return &CoreError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// ErrorTypeOf returns the category of err, or ErrorTypeInternal when err is
// not a CoreError.
func ErrorTypeOf(err error) ErrorType {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrorTypeInternal
}
