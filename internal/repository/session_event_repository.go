package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-portal/internal/model"
)

// SessionEventRepository handles assessment_session_events persistence.
type SessionEventRepository struct {
	pool *pgxpool.Pool
}

// NewSessionEventRepository creates a new SessionEventRepository.
func NewSessionEventRepository(pool *pgxpool.Pool) *SessionEventRepository {
	return &SessionEventRepository{pool: pool}
}

// InsertSessionEvent stores one event. Re-inserting the same event id is a no-op.
func (r *SessionEventRepository) InsertSessionEvent(ctx context.Context, ev *model.SessionEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO assessment_session_events
		   (id, run_id, student_id, assessment_id, event_type, state, trigger,
		    remaining_seconds, time_taken_seconds, answered, total, submission_id, error, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''), $14)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.RunID, ev.StudentID, ev.AssessmentID.String(), string(ev.Type), ev.State, ev.Trigger,
		ev.Remaining, ev.TimeTaken, ev.Answered, ev.Total, ev.SubmissionID.String(), ev.Error, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}
