/**
 * Error types for the PhotoScan Worker
 *
 * Every failure inside the extraction pipeline is classified by code. Only
 * DECODE_ERROR (and service-layer validation/storage failures) abort a run;
 * the remaining codes are absorbed into warnings on the extraction result.
 */

package errors

import (
	goerrors "errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Pipeline errors
	ErrorDecodeFailed        ErrorCode = "DECODE_ERROR"
	ErrorStrategyDegraded    ErrorCode = "STRATEGY_DEGRADED"
	ErrorProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrorNoAttributesFound   ErrorCode = "NO_ATTRIBUTES_FOUND"
	ErrorProcessingTimeout   ErrorCode = "PROCESSING_TIMEOUT"

	// Service-layer errors
	ErrorValidationFailed ErrorCode = "VALIDATION_ERROR"
	ErrorStorageFailed    ErrorCode = "STORAGE_FAILED"
	ErrorDatabaseFailed   ErrorCode = "DATABASE_FAILED"
	ErrorQueueFailed      ErrorCode = "QUEUE_FAILED"
	ErrorAPICallFailed    ErrorCode = "API_CALL_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewDecodeError(jobID string, format string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDecodeFailed,
		Message:   "Input could not be decoded as a raster image",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"format": format,
		},
		Cause: cause,
	}
}

func NewStrategyDegradedError(jobID string, strategy string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStrategyDegraded,
		Message:   fmt.Sprintf("Recognition strategy produced no spans: %s", strategy),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"strategy": strategy,
		},
		Cause: cause,
	}
}

func NewProviderUnavailableError(jobID string, provider string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProviderUnavailable,
		Message:   fmt.Sprintf("Capability provider unreachable: %s", provider),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"provider": provider,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewValidationError(jobID string, field string, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorValidationFailed,
		Message:   fmt.Sprintf("Invalid job payload: %s %s", field, reason),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var pe *ProcessingError
	if goerrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsFatal reports whether err must abort the run instead of degrading it.
func IsFatal(err error) bool {
	var pe *ProcessingError
	if goerrors.As(err, &pe) {
		switch pe.Code {
		case ErrorDecodeFailed, ErrorValidationFailed, ErrorStorageFailed, ErrorDatabaseFailed:
			return true
		}
		return false
	}
	// Unclassified errors are treated as fatal so they are never silently
	// downgraded to warnings.
	return err != nil
}

// ToMap converts error to job metadata for database storage. The errorCode
// and error keys line up with what UpdateJobStatus extracts.
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"errorCode": string(e.Code),
		"error":     e.Message,
		"timestamp": e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
