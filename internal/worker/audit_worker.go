package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/model"
)

// EventStore persists session events.
type EventStore interface {
	InsertSessionEvent(ctx context.Context, ev *model.SessionEvent) error
}

// AuditWorker consumes the session events queue and stores each event.
type AuditWorker struct {
	store      EventStore
	rdb        *redis.Client
	log        zerolog.Logger
	queue      string
	retryDelay time.Duration
}

// NewAuditWorker creates a new AuditWorker.
func NewAuditWorker(store EventStore, rdb *redis.Client, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		store:      store,
		rdb:        rdb,
		log:        log.With().Str("component", "audit_worker").Logger(),
		queue:      config.WorkerKey.SessionEventsQueue,
		retryDelay: 5 * time.Second,
	}
}

// Start begins the worker loop and returns when ctx is done, after draining
// what is left in the queue.
func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AuditWorker) processNext(ctx context.Context) {
	// An item popped by a cancelled BLPop would be lost, so the pop and the
	// insert outlive ctx; shutdown waits at most the 1 second poll.
	opCtx := context.WithoutCancel(ctx)

	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(opCtx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			w.log.Error().Err(err).Msg("BLPop error")
			w.sleep(ctx)
		}
		return
	}

	if len(result) < 2 {
		return
	}

	ev, ok := w.decode(result[1])
	if !ok {
		return
	}

	if err := w.store.InsertSessionEvent(opCtx, ev); err != nil {
		w.log.Error().Err(err).
			Int("student_id", ev.StudentID).
			Str("assessment_id", ev.AssessmentID.String()).
			Str("type", string(ev.Type)).
			Msg("Persist error, retrying")
		// Push back to queue for retry; inserts are idempotent on event id.
		w.rdb.RPush(opCtx, w.queue, result[1])
		w.sleep(ctx)
	}
}

func (w *AuditWorker) decode(raw string) (*model.SessionEvent, bool) {
	var ev model.SessionEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		w.log.Error().Err(err).Str("payload", raw).Msg("Dropping undecodable event")
		return nil, false
	}
	return &ev, true
}

func (w *AuditWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *AuditWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		ev, ok := w.decode(raw)
		if !ok {
			continue
		}

		if err := w.store.InsertSessionEvent(ctx, ev); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.LPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
