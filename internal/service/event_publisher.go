package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/session"
)

const publishTimeout = 2 * time.Second

// EventPublisher queues session milestones for the audit worker. It is a
// session.Observer bound to one student's run.
type EventPublisher struct {
	rdb       *redis.Client
	log       zerolog.Logger
	runID     uuid.UUID
	studentID int
	now       func() time.Time
}

// NewEventPublisher creates a publisher for one session run.
func NewEventPublisher(rdb *redis.Client, log zerolog.Logger, studentID int) *EventPublisher {
	runID := uuid.New()
	return &EventPublisher{
		rdb:       rdb,
		log:       log.With().Str("component", "event_publisher").Str("run_id", runID.String()).Logger(),
		runID:     runID,
		studentID: studentID,
		now:       time.Now,
	}
}

// RunID identifies the session run in every event it publishes.
func (p *EventPublisher) RunID() uuid.UUID {
	return p.runID
}

// StateChanged queues an event for each audited transition.
func (p *EventPublisher) StateChanged(snap session.Snapshot) {
	typ, ok := eventType(snap)
	if !ok {
		return
	}

	ev := model.SessionEvent{
		ID:           uuid.New(),
		RunID:        p.runID,
		StudentID:    p.studentID,
		AssessmentID: snap.AssessmentID,
		Type:         typ,
		State:        string(snap.State),
		Trigger:      string(snap.Trigger),
		Remaining:    snap.Remaining,
		TimeTaken:    snap.TimeTaken,
		Answered:     snap.Answered,
		Total:        snap.Total,
		OccurredAt:   p.now().UTC(),
	}
	if snap.Result != nil {
		ev.SubmissionID = snap.Result.SubmissionID
	}
	if snap.Err != nil {
		ev.Error = snap.Err.Error()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to encode session event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.rdb.RPush(ctx, config.WorkerKey.SessionEventsQueue, b).Err(); err != nil {
		p.log.Error().Err(err).Str("type", string(typ)).Msg("Failed to queue session event")
	}
}

// Ticked is not audited.
func (p *EventPublisher) Ticked(model.ID, int) {}

func eventType(snap session.Snapshot) (model.SessionEventType, bool) {
	switch snap.State {
	case session.StateReadyToStart:
		return model.SessionEventLoaded, true
	case session.StateInProgress:
		return model.SessionEventStarted, true
	case session.StateSubmitting:
		return model.SessionEventSubmitting, true
	case session.StateSubmitted:
		return model.SessionEventSubmitted, true
	case session.StateErrored:
		if snap.Previous == session.StateSubmitting {
			return model.SessionEventFailed, true
		}
		return model.SessionEventLoadFailed, true
	}
	return "", false
}
