package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnprocessable    = "UNPROCESSABLE"
	ErrCodeConflict         = "CONFLICT"
)

// Validation errors
var (
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidIndexJobStatus = NewDomainError(ErrCodeValidation, "invalid index job status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrMissingContent        = NewDomainError(ErrCodeValidation, "document needs either a body or a source object")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIndexJobNotFound  = NewDomainError(ErrCodeNotFound, "index job not found")
	ErrSourceNotUploaded = NewDomainError(ErrCodeNotFound, "source object not found in storage")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Operation errors
var (
	ErrDocumentBusy         = NewDomainError(ErrCodeConflict, "document is being processed")
	ErrStorageNotConfigured = NewDomainError(ErrCodeInvalidOperation, "object storage is not configured")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// Extraction errors
var (
	ErrUnsupportedContent = NewDomainError(ErrCodeUnprocessable, "document content type is not supported")
)
