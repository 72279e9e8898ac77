package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a milestone in a student's assessment session.
type SessionEventType string

const (
	SessionEventLoaded     SessionEventType = "loaded"
	SessionEventLoadFailed SessionEventType = "load_failed"
	SessionEventStarted    SessionEventType = "started"
	SessionEventSubmitting SessionEventType = "submitting"
	SessionEventSubmitted  SessionEventType = "submitted"
	SessionEventFailed     SessionEventType = "submit_failed"
)

// SessionEvent is one audit record, queued in Redis and persisted by the
// audit worker into assessment_session_events.
type SessionEvent struct {
	ID           uuid.UUID        `json:"id"`
	RunID        uuid.UUID        `json:"run_id"`
	StudentID    int              `json:"student_id"`
	AssessmentID ID               `json:"assessment_id"`
	Type         SessionEventType `json:"type"`
	State        string           `json:"state"`
	Trigger      string           `json:"trigger,omitempty"`
	Remaining    int              `json:"remaining"`
	TimeTaken    int              `json:"time_taken"`
	Answered     int              `json:"answered"`
	Total        int              `json:"total"`
	SubmissionID ID               `json:"submission_id,omitempty"`
	Error        string           `json:"error,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}
