// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeDiagnosisNotFound     ErrorCode = "DIAGNOSIS_NOT_FOUND"
	ErrCodeDiagnosisLookupFailed ErrorCode = "DIAGNOSIS_LOOKUP_FAILED"
	ErrCodeDiagnosisInvalid      ErrorCode = "DIAGNOSIS_INVALID"
	ErrCodeDiagnosisSaveFailed   ErrorCode = "DIAGNOSIS_SAVE_FAILED"

	ErrCodeAICompletionTimeout ErrorCode = "AI_COMPLETION_TIMEOUT"
	ErrCodeAICompletionFailed  ErrorCode = "AI_COMPLETION_FAILED"

	ErrCodeScheduleInsertFailed ErrorCode = "SCHEDULE_INSERT_FAILED"
	ErrCodeDuplicateSchedule    ErrorCode = "DUPLICATE_SCHEDULE"

	ErrCodeRecipientNotFound      ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeProgressIndexFailed ErrorCode = "PROGRESS_INDEX_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a metadata key and returns e.
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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false, nil)
}

// NewDiagnosisNotFoundError creates a non-retryable lookup miss.
func NewDiagnosisNotFoundError(followupID string) *StandardError {
	return newError(ErrCodeDiagnosisNotFound, "Diagnosis not found", "followupId="+followupID, false, nil)
}

// NewDiagnosisLookupFailedError creates a retryable storage error.
func NewDiagnosisLookupFailedError(err error) *StandardError {
	return newError(ErrCodeDiagnosisLookupFailed, "Failed to load diagnosis", err.Error(), true, err)
}

// NewDiagnosisInvalidError creates a non-retryable schema error.
func NewDiagnosisInvalidError(details string) *StandardError {
	return newError(ErrCodeDiagnosisInvalid, "Diagnosis failed validation", details, false, nil)
}

func NewDiagnosisSaveFailedError(err error) *StandardError {
	return newError(ErrCodeDiagnosisSaveFailed, "Failed to store diagnosis", err.Error(), true, err)
}

func NewAICompletionTimeoutError(err error) *StandardError {
	return newError(ErrCodeAICompletionTimeout, "AI completion timed out", err.Error(), true, err)
}

func NewAICompletionFailedError(err error) *StandardError {
	return newError(ErrCodeAICompletionFailed, "AI completion failed", err.Error(), true, err)
}

func NewScheduleInsertFailedError(err error) *StandardError {
	return newError(ErrCodeScheduleInsertFailed, "Failed to store follow-up schedule", err.Error(), true, err)
}

// NewDuplicateScheduleError creates a non-retryable conflict for an already scheduled follow-up.
func NewDuplicateScheduleError(followupID string) *StandardError {
	return newError(ErrCodeDuplicateSchedule, "Follow-up already scheduled", "followupId="+followupID, false, nil)
}

func NewRecipientNotFoundError(userID string) *StandardError {
	return newError(ErrCodeRecipientNotFound, "Recipient not found", "userId="+userID, false, nil)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, fmt.Sprintf("Failed to send %s notification", channel), err.Error(), true, err)
}

func NewProgressIndexFailedError(index string, err error) *StandardError {
	return newError(ErrCodeProgressIndexFailed, fmt.Sprintf("Failed to index progress into '%s'", index), err.Error(), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the BPMN error codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:           "INVALID_INPUT",
	ErrCodeDiagnosisNotFound:      "DIAGNOSIS_NOT_FOUND",
	ErrCodeDiagnosisLookupFailed:  "DIAGNOSIS_LOOKUP_FAILED",
	ErrCodeDiagnosisInvalid:       "DIAGNOSIS_INVALID",
	ErrCodeDiagnosisSaveFailed:    "DIAGNOSIS_SAVE_FAILED",
	ErrCodeAICompletionTimeout:    "AI_COMPLETION_TIMEOUT",
	ErrCodeAICompletionFailed:     "AI_COMPLETION_FAILED",
	ErrCodeScheduleInsertFailed:   "SCHEDULE_INSERT_FAILED",
	ErrCodeDuplicateSchedule:      "DUPLICATE_SCHEDULE",
	ErrCodeRecipientNotFound:      "RECIPIENT_NOT_FOUND",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeProgressIndexFailed:    "PROGRESS_INDEX_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDiagnosisLookupFailed,
		ErrCodeDiagnosisSaveFailed,
		ErrCodeScheduleInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeProgressIndexFailed,
		ErrCodeAICompletionFailed:
		return 3

	case ErrCodeAICompletionTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "DIAGNOSIS"):
		return "DIAGNOSIS"
	case strings.HasPrefix(codeStr, "AI_"):
		return "AI"
	case strings.Contains(codeStr, "SCHEDULE"):
		return "SCHEDULING"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "RECIPIENT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
