// Package errors provides the error taxonomy shared by the pipeline stages and the workflow worker.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Configuration errors abort the whole run before any ticket is processed.
const (
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeSystemPromptMissing  ErrorCode = "SYSTEM_PROMPT_MISSING"
)

// Per-call transient errors fail the current ticket only.
const (
	ErrCodeTicketSearchFailed  ErrorCode = "TICKET_SEARCH_FAILED"
	ErrCodeTriageFailed        ErrorCode = "TRIAGE_FAILED"
	ErrCodeTriageTimeout       ErrorCode = "TRIAGE_TIMEOUT"
	ErrCodeEmbeddingFailed     ErrorCode = "EMBEDDING_FAILED"
	ErrCodeVectorQueryFailed   ErrorCode = "VECTOR_QUERY_FAILED"
	ErrCodeRetrievalTimeout    ErrorCode = "RETRIEVAL_TIMEOUT"
	ErrCodeGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout   ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeComposeFailed       ErrorCode = "COMPOSE_FAILED"
	ErrCodeDatabaseUnavailable ErrorCode = "DATABASE_UNAVAILABLE"
)

// Data-quality events have a local fallback and are never run failures,
// except a prompt that cannot fit even without references.
const (
	ErrCodeTriageScoreUnparseable   ErrorCode = "TRIAGE_SCORE_UNPARSEABLE"
	ErrCodeReferenceMetadataMissing ErrorCode = "REFERENCE_METADATA_MISSING"
	ErrCodePromptReferencesTrimmed  ErrorCode = "PROMPT_REFERENCES_TRIMMED"
	ErrCodePromptTooLong            ErrorCode = "PROMPT_TOO_LONG"
	ErrCodeGenerationEmpty          ErrorCode = "GENERATION_EMPTY"
)

// Publish errors are logged with the composed document for manual recovery.
const (
	ErrCodePublishFailed          ErrorCode = "PUBLISH_FAILED"
	ErrCodePublishTimeout         ErrorCode = "PUBLISH_TIMEOUT"
	ErrCodeAuditWriteFailed       ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// New builds a StandardError for code, keeping err as the cause.
func New(code ErrorCode, message string, err error) *StandardError {
	stdErr := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: GetErrorCategory(code) == CategoryTransient,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
	if err != nil {
		stdErr.Details = err.Error()
	}
	return stdErr
}

// NewConfigurationInvalidError creates a fatal configuration error.
func NewConfigurationInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Configuration is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemPromptMissingError creates a fatal error for an unreadable system prompt.
func NewSystemPromptMissingError(path string, err error) *StandardError {
	stdErr := New(ErrCodeSystemPromptMissing, "System prompt could not be loaded", err)
	return stdErr.WithMetadata("path", path)
}

// NewTicketSearchFailedError creates a retryable ticket search error.
func NewTicketSearchFailedError(err error) *StandardError {
	return New(ErrCodeTicketSearchFailed, "Ticket search failed", err)
}

// NewPublishFailedError creates a non-retryable publish error carrying the ticket key.
func NewPublishFailedError(ticketKey string, err error) *StandardError {
	return New(ErrCodePublishFailed, "Reply could not be published", err).
		WithMetadata("ticketKey", ticketKey)
}

// NewDatabaseUnavailableError creates a retryable backend connectivity error.
func NewDatabaseUnavailableError(backend string, err error) *StandardError {
	return New(ErrCodeDatabaseUnavailable, fmt.Sprintf("%s unavailable", backend), err)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return New(ErrCodeNotificationSendFailed, "Notification delivery failed", err).
		WithMetadata("channel", channel)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTicketSearchFailed,
		ErrCodeDatabaseUnavailable,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeTriageFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeVectorQueryFailed,
		ErrCodeGenerationFailed:
		return 2

	case ErrCodeTriageTimeout,
		ErrCodeRetrievalTimeout,
		ErrCodeGenerationTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorCategory":     GetErrorCategory(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// Error categories
const (
	CategoryConfiguration = "CONFIGURATION"
	CategoryTransient     = "TRANSIENT"
	CategoryDataQuality   = "DATA_QUALITY"
	CategoryPublish       = "PUBLISH"
	CategoryOther         = "OTHER"
)

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeConfigurationInvalid, ErrCodeSystemPromptMissing:
		return CategoryConfiguration
	case ErrCodeTicketSearchFailed, ErrCodeTriageFailed, ErrCodeTriageTimeout,
		ErrCodeEmbeddingFailed, ErrCodeVectorQueryFailed, ErrCodeRetrievalTimeout,
		ErrCodeGenerationFailed, ErrCodeGenerationTimeout, ErrCodeComposeFailed,
		ErrCodeDatabaseUnavailable, ErrCodeNotificationSendFailed,
		"EXTERNAL_SERVICE_ERROR", "TIMEOUT_ERROR":
		return CategoryTransient
	case ErrCodeTriageScoreUnparseable, ErrCodeReferenceMetadataMissing,
		ErrCodePromptReferencesTrimmed, ErrCodePromptTooLong, ErrCodeGenerationEmpty:
		return CategoryDataQuality
	case ErrCodePublishFailed, ErrCodePublishTimeout, ErrCodeAuditWriteFailed:
		return CategoryPublish
	default:
		return CategoryOther
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// CodeOf returns the code of the first StandardError in err's chain.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsFatal reports whether err should abort the whole run.
func IsFatal(err error) bool {
	return GetErrorCategory(CodeOf(err)) == CategoryConfiguration
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}
