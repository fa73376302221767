// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Generation pipeline
	ErrCodeGenerationValidationFailed ErrorCode = "GENERATION_VALIDATION_FAILED"
	ErrCodeBatchInsertFailed          ErrorCode = "BATCH_INSERT_FAILED"
	ErrCodeIsolationViolation         ErrorCode = "ISOLATION_VIOLATION"
	ErrCodeSessionCreateFailed        ErrorCode = "SESSION_CREATE_FAILED"
	ErrCodeSessionPurgeFailed         ErrorCode = "SESSION_PURGE_FAILED"

	// Scoring pipeline
	ErrCodeProfileNotFound    ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeInputBuildFailed   ErrorCode = "INPUT_BUILD_FAILED"
	ErrCodeScorePersistFailed ErrorCode = "SCORE_PERSIST_FAILED"

	// Sinks (never fail the primary operation)
	ErrCodeLedgerWriteFailed ErrorCode = "LEDGER_WRITE_FAILED"
	ErrCodeHealthSinkFailed  ErrorCode = "HEALTH_SINK_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the workflow engine.
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

// ToErrorVariables returns a map suitable for setting job fail variables.
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

// NewGenerationValidationFailedError rejects a bad generation request
// before any write happens. Never retryable.
func NewGenerationValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationValidationFailed,
		Message:   "Generation request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchInsertFailedError marks one batch write as failed. Retryable
// at the workflow level; the core itself does not retry batches.
func NewBatchInsertFailedError(batch int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchInsertFailed,
		Message:   "Synthetic batch insert failed",
		Details:   fmt.Sprintf("batch: %d, error: %s", batch, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIsolationViolationError is fatal: a write was attempted without the
// isolation flag. It must abort the run and is never downgraded.
func NewIsolationViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIsolationViolation,
		Message:   "Write attempted without isolation flag",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionCreateFailedError creates a retryable session insert error.
func NewSessionCreateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionCreateFailed,
		Message:   "Synthetic session insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionPurgeFailedError creates a retryable purge error.
func NewSessionPurgeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionPurgeFailed,
		Message:   "Expired session purge failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileNotFoundError creates a non-retryable missing profile error.
func NewProfileNotFoundError(profileID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileNotFound,
		Message:   "Profile not found",
		Details:   fmt.Sprintf("profileId: %s", profileID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputBuildFailedError creates a retryable input builder error.
func NewInputBuildFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputBuildFailed,
		Message:   "Profile input build failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScorePersistFailedError creates a retryable score write error.
func NewScorePersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScorePersistFailed,
		Message:   "Score persist failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLedgerWriteFailedError marks a failed audit write. The score that
// triggered it stays valid; this only surfaces as a health event.
func NewLedgerWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerWriteFailed,
		Message:   "Score history write failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewHealthSinkFailedError marks a failed health-event emit.
func NewHealthSinkFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHealthSinkFailed,
		Message:   "Health event emit failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeBatchInsertFailed,
		ErrCodeSessionCreateFailed,
		ErrCodeSessionPurgeFailed,
		ErrCodeInputBuildFailed,
		ErrCodeScorePersistFailed:
		return 3

	default:
		// Validation and isolation failures are never retried.
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsFatal reports whether an error must abort an entire run instead of
// degrading it. Only the isolation invariant qualifies.
func IsFatal(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code == ErrCodeIsolationViolation
	}
	return false
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
