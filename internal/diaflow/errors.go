package diaflow

import (
	"fmt"
)

// ConfigurationError reports a missing secret or setting. It is fatal for the
// attempted operation and must not be retried.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("diaflow: missing configuration %s", e.Field)
}

// SubmissionFailedError reports that the engine rejected or errored on job start.
// StatusCode is zero when the request never got a response.
type SubmissionFailedError struct {
	Kind       string
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diaflow: submit %s failed: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("diaflow: submit %s failed: HTTP %d: %s", e.Kind, e.StatusCode, e.Body)
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}

// StatusCheckFailedError reports that a single status-check call failed.
// It says nothing about the job itself, which may still be running.
type StatusCheckFailedError struct {
	SessionID  string
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusCheckFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diaflow: status check for session %s failed: %v", e.SessionID, e.Err)
	}
	return fmt.Sprintf("diaflow: status check for session %s failed: HTTP %d: %s", e.SessionID, e.StatusCode, e.Body)
}

func (e *StatusCheckFailedError) Unwrap() error {
	return e.Err
}
