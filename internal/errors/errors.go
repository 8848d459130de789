// Package errors provides enhanced error types with helpful context and suggestions
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Query processing errors
	ErrCodeExtractionParse     ErrorCode = "EXTRACTION_PARSE_FAILED"
	ErrCodeGeneration          ErrorCode = "GENERATION_FAILED"
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"
	ErrCodeMalformedDate       ErrorCode = "MALFORMED_DATE"

	// Telemetry platform errors
	ErrCodePlatformAuth  ErrorCode = "AUTH_FAILED"
	ErrCodePlatformFetch ErrorCode = "TELEMETRY_FETCH_FAILED"

	// Storage errors
	ErrCodeKnowledgeLoad ErrorCode = "KNOWLEDGE_LOAD_FAILED"
	ErrCodeKnowledgeSave ErrorCode = "KNOWLEDGE_SAVE_FAILED"
	ErrCodeHistoryWrite  ErrorCode = "HISTORY_WRITE_FAILED"

	// Authentication errors
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeTokenCreation      ErrorCode = "TOKEN_CREATION_FAILED"
	ErrCodeSessionCreation    ErrorCode = "SESSION_CREATION_FAILED"
	ErrCodeNotAuthenticated   ErrorCode = "NOT_AUTHENTICATED"

	// Input validation errors
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED_FIELD"

	// Cache errors
	ErrCodeCacheRead  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWrite ErrorCode = "CACHE_WRITE_FAILED"
)

// EnhancedError represents an error with additional context and helpful information
type EnhancedError struct {
	Code          ErrorCode              `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	Suggestion    string                 `json:"suggestion,omitempty"`
	Documentation string                 `json:"documentation,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Cause         error                  `json:"-"`
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.Details != "" {
		sb.WriteString(fmt.Sprintf(": %s", e.Details))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" (cause: %v)", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain unwrapping
func (e *EnhancedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly error message with suggestions
func (e *EnhancedError) UserMessage() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString(fmt.Sprintf("\n\nDetails: %s", e.Details))
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion))
	}

	if e.Documentation != "" {
		sb.WriteString(fmt.Sprintf("\n\nLearn more: %s", e.Documentation))
	}

	return sb.String()
}

// New creates a new EnhancedError
func New(code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with enhanced context
func Wrap(err error, code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Cause:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithDetails adds detailed information about the error
func (e *EnhancedError) WithDetails(details string) *EnhancedError {
	e.Details = details
	return e
}

// WithSuggestion adds a suggestion on how to fix the error
func (e *EnhancedError) WithSuggestion(suggestion string) *EnhancedError {
	e.Suggestion = suggestion
	return e
}

// WithMetadata adds additional metadata to the error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Common error constructors with pre-configured messages

// NewExtractionParseError creates an error for unparseable model extractions
func NewExtractionParseError(err error, query string) *EnhancedError {
	return Wrap(err, ErrCodeExtractionParse, "Failed to parse query extraction").
		WithDetails(fmt.Sprintf("The model response for query '%s' did not contain a valid JSON object", query)).
		WithSuggestion("Try rephrasing your question with an explicit device and variable name. For example: 'Nhiệt độ của PUMP-01 hôm nay thế nào?'")
}

// NewGenerationError creates an error for language model call failures
func NewGenerationError(err error) *EnhancedError {
	return Wrap(err, ErrCodeGeneration, "Language model request failed").
		WithDetails("The model service was unable to process the request").
		WithSuggestion("This is typically a temporary issue. Please try your query again in a moment.").
		WithMetadata("retryable", true)
}

// NewUnresolvedReferenceError creates an error for device names with no directory match
func NewUnresolvedReferenceError(name string) *EnhancedError {
	return New(ErrCodeUnresolvedReference, "Device not found").
		WithDetails(fmt.Sprintf("No device in the directory matches the name: %s", name)).
		WithSuggestion("Check the device name for typos. Use the /api/v1/devices endpoint to see all known devices.").
		WithMetadata("device_name", name)
}

// NewMalformedDateError creates an error for dates that fit no accepted layout
func NewMalformedDateError(value string) *EnhancedError {
	return New(ErrCodeMalformedDate, "Unrecognized date format").
		WithDetails(fmt.Sprintf("The date '%s' does not match any accepted layout", value)).
		WithSuggestion("Use YYYY-MM-DD, DD/MM/YYYY or DD-MM-YYYY.").
		WithMetadata("value", value)
}

// NewPlatformAuthError creates an error for telemetry platform login failures
func NewPlatformAuthError(err error) *EnhancedError {
	return Wrap(err, ErrCodePlatformAuth, "Telemetry platform login failed").
		WithDetails("The platform rejected the configured credentials").
		WithSuggestion("Verify the platform base URL, username and password in the service configuration.")
}

// NewKnowledgeLoadError creates an error for knowledge spreadsheet read failures
func NewKnowledgeLoadError(err error, path string) *EnhancedError {
	return Wrap(err, ErrCodeKnowledgeLoad, "Failed to load device knowledge").
		WithDetails(fmt.Sprintf("Could not read the knowledge file at %s", path)).
		WithSuggestion("Check that the file exists and is a readable spreadsheet.").
		WithMetadata("path", path)
}

// NewKnowledgeSaveError creates an error for knowledge spreadsheet write failures
func NewKnowledgeSaveError(err error, path string) *EnhancedError {
	return Wrap(err, ErrCodeKnowledgeSave, "Failed to save device knowledge").
		WithDetails(fmt.Sprintf("Could not write the knowledge file at %s", path)).
		WithMetadata("path", path)
}

// NewHistoryWriteError creates an error for history persistence failures
func NewHistoryWriteError(err error) *EnhancedError {
	return Wrap(err, ErrCodeHistoryWrite, "Failed to persist query history").
		WithDetails("The history entry could not be written to disk").
		WithMetadata("retryable", true)
}

// NewInvalidCredentialsError creates an error for authentication failures
func NewInvalidCredentialsError() *EnhancedError {
	return New(ErrCodeInvalidCredentials, "Invalid username or password").
		WithDetails("Authentication failed with the provided credentials").
		WithSuggestion("Please check your username and password and try again. If you've forgotten your password, contact your administrator.")
}

// NewTokenCreationError creates an error for token creation failures
func NewTokenCreationError(err error) *EnhancedError {
	return Wrap(err, ErrCodeTokenCreation, "Failed to create authentication token").
		WithDetails("The system was unable to generate an authentication token").
		WithSuggestion("This is an internal server error. Please try logging in again. If the problem persists, contact support.").
		WithMetadata("retryable", true)
}

// NewSessionCreationError creates an error for session creation failures
func NewSessionCreationError(err error) *EnhancedError {
	return Wrap(err, ErrCodeSessionCreation, "Failed to create session").
		WithDetails("The system was unable to create a session").
		WithSuggestion("This is an internal server error. Please try logging in again. If the problem persists, contact support.").
		WithMetadata("retryable", true)
}

// NewNotAuthenticatedError creates an error for unauthenticated requests
func NewNotAuthenticatedError() *EnhancedError {
	return New(ErrCodeNotAuthenticated, "Authentication required").
		WithDetails("This endpoint requires authentication").
		WithSuggestion("Please log in using the /api/v1/auth/login endpoint and include the token as a Bearer header.")
}

// NewInvalidInputError creates an error for invalid input
func NewInvalidInputError(field string, reason string) *EnhancedError {
	return New(ErrCodeInvalidInput, "Invalid input").
		WithDetails(fmt.Sprintf("Field '%s' is invalid: %s", field, reason)).
		WithSuggestion("Please check the API documentation for the expected format and try again.")
}
