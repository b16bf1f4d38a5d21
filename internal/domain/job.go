package domain

import "time"

// JobKind identifies the category of external asynchronous operation.
// It selects the Diaflow builder to submit to and the output-node table used
// when extracting results.
type JobKind string

const (
	JobKindSourceTranscribe JobKind = "source-transcribe"
	JobKindTextGenerate     JobKind = "text-generate"
	JobKindImageGenerate    JobKind = "image-generate"
)

// Valid reports whether k is one of the known job kinds.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindSourceTranscribe, JobKindTextGenerate, JobKindImageGenerate:
		return true
	}
	return false
}

// ProcessingStatus represents the lifecycle state of a tracked job.
// Values include ProcessingStatusPending, ProcessingStatusProcessing,
// ProcessingStatusCompleted, and ProcessingStatusFailed.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// IsTerminal reports whether no further transitions or polling may happen.
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

// CanTransitionTo reports whether moving from s to next respects the
// forward-only lifecycle pending -> processing -> (completed | failed).
// A pending job may fail directly when submission fails.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case ProcessingStatusPending:
		return next == ProcessingStatusProcessing || next == ProcessingStatusFailed
	case ProcessingStatusProcessing:
		return next == ProcessingStatusCompleted || next == ProcessingStatusFailed
	default:
		return false
	}
}

// TrackedJob is the job-lifecycle view of a Source or GeneratedContent record.
type TrackedJob struct {
	ID        string
	Kind      JobKind
	SessionID *string
	Status    ProcessingStatus
}

// Pollable reports whether the job is waiting on the engine and can be polled.
func (j TrackedJob) Pollable() bool {
	return j.Status == ProcessingStatusProcessing && j.SessionID != nil && *j.SessionID != ""
}

// JobState is the persisted status of a job and when it entered processing.
// StartedAt is zero for jobs that never reached processing.
type JobState struct {
	Status    ProcessingStatus
	StartedAt time.Time
}
