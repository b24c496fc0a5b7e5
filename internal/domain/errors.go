package domain

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Pipeline specific errors
	ErrStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrExtractionFailure ErrorCode = "EXTRACTION_FAILURE"
	ErrGenerationFailure ErrorCode = "GENERATION_FAILURE"
	ErrProcessingFailure ErrorCode = "PROCESSING_FAILURE"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Helper constructors for common errors

func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(ErrInternal, message, cause)
}

// NewStorageError wraps database and file-storage failures.
func NewStorageError(message string, cause error) *DomainError {
	return NewError(ErrStorageFailure, message, cause)
}

// NewExtractionError wraps OCR and question-extraction failures.
func NewExtractionError(message string, cause error) *DomainError {
	return NewError(ErrExtractionFailure, message, cause)
}

// NewGenerationError wraps answer-generation failures. These are absorbed
// inside the generator and never cross the pipeline boundary.
func NewGenerationError(cause error) *DomainError {
	return NewError(ErrGenerationFailure, "Failed to generate answer", cause)
}

func NewTestNotFoundError(testID string) *DomainError {
	return NewError(ErrNotFound, fmt.Sprintf("Test not found with ID: %s", testID), nil)
}

// ProcessingError is a fatal pipeline failure tagged with the stage that
// raised it. Its message is what gets persisted on the failed Test.
type ProcessingError struct {
	Stage string
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed at stage '%s': %v", e.Stage, e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// NewProcessingError tags cause with the pipeline stage it occurred in.
func NewProcessingError(stage string, cause error) *ProcessingError {
	return &ProcessingError{Stage: stage, Cause: cause}
}
