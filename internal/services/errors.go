package services

import "fmt"

// ValidationError marks malformed or missing required input. Surfaced to the
// caller as a client error, never silently defaulted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RetrievalBackendError marks an unreachable or misconfigured vector store.
// Callers recover it into a "no context" response rather than propagating.
type RetrievalBackendError struct {
	Err error
}

func (e *RetrievalBackendError) Error() string {
	return "retrieval backend unavailable: " + e.Err.Error()
}

func (e *RetrievalBackendError) Unwrap() error {
	return e.Err
}

// TaskExecutionError marks a failure of the external task runner or an
// unknown task key.
type TaskExecutionError struct {
	TaskKey string
	Err     error
}

func (e *TaskExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %q execution failed: %v", e.TaskKey, e.Err)
	}
	return fmt.Sprintf("task %q execution failed", e.TaskKey)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}

// ExternalServiceError marks a failure of an outbound collaborator such as
// the appointment webhook.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
