package domain

import (
	"fmt"
	"time"
)

// Workflow enumerates supported cover-generation workflows.
type Workflow string

const (
	WorkflowAutomated Workflow = "automated"
	WorkflowManual    Workflow = "manual"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued           JobStatus = "queued"
	JobStatusGenerating       JobStatus = "generating"
	JobStatusAwaitingApproval JobStatus = "awaiting_approval"
	JobStatusApproved         JobStatus = "approved"
	JobStatusCompleted        JobStatus = "completed"
	JobStatusRejected         JobStatus = "rejected"
	JobStatusFailed           JobStatus = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusRejected, JobStatusFailed:
		return true
	}
	return false
}

// TargetSize is the exact pixel dimensions the final cover must have.
type TargetSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s TargetSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ErrorKind classifies terminal job failures.
type ErrorKind string

const (
	ErrorKindInferenceFailure ErrorKind = "inference_failure"
	ErrorKindInferenceTimeout ErrorKind = "inference_timeout"
	ErrorKindComposition      ErrorKind = "composition_error"
	ErrorKindStorage          ErrorKind = "storage_failure"
)

// JobError is the structured failure detail recorded on a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Job encapsulates the lifecycle of one cover-generation request.
//
// ID is immutable and unique. Status only moves forward through the
// transition graph enforced by the job store. ResultRef is set exactly when
// the job reaches a success-terminal state with a persisted artifact; Error
// is set exactly when the job is failed.
type Job struct {
	ID             string
	Workflow       Workflow
	Title          string
	Subtitle       string
	ClientID       string
	TargetSize     TargetSize
	CustomPrompt   string
	SelectedAssets []string
	Status         JobStatus
	ResultRef      string
	PreviewRef     string
	Error          *JobError
	IdempotencyKey string
	// PendingPersistence marks a completed job whose storage write failed
	// and is still owed to the backend.
	PendingPersistence bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
