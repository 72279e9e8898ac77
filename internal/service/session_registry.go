package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/model"
)

// ErrSessionAlreadyLive is returned when the student already has this
// assessment open on another connection.
var ErrSessionAlreadyLive = errors.New("assessment session already live")

// Release and extend only touch the lock if it still carries our token, so a
// lease that expired and was re-acquired elsewhere is left alone.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// SessionRegistry keeps at most one live session per student and assessment,
// and remembers submission receipts so a finished assessment is not reopened.
type SessionRegistry struct {
	rdb   *redis.Client
	grace time.Duration
}

// NewSessionRegistry creates a new SessionRegistry.
func NewSessionRegistry(cfg *config.Config, rdb *redis.Client) *SessionRegistry {
	return &SessionRegistry{rdb: rdb, grace: cfg.SessionLockGrace}
}

// Lease is a held live-session lock.
type Lease struct {
	rdb   *redis.Client
	key   string
	token string
}

// Acquire takes the live-session lock for the grace period. Call Extend once
// the assessment duration is known.
func (r *SessionRegistry) Acquire(ctx context.Context, studentID int, assessmentID model.ID) (*Lease, error) {
	key := config.CacheKey.StudentAssessmentLockKey(assessmentID.String(), studentID)
	token := uuid.New().String()

	ok, err := r.rdb.SetNX(ctx, key, token, r.grace).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, ErrSessionAlreadyLive
	}
	return &Lease{rdb: r.rdb, key: key, token: token}, nil
}

// LockTTL is how long a lease must live for an assessment of the given
// duration, counted from the moment it starts.
func (r *SessionRegistry) LockTTL(durationSeconds int) time.Duration {
	return time.Duration(durationSeconds)*time.Second + r.grace
}

// Extend resets the lease TTL. It reports false if the lease was lost.
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, l.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend session lock: %w", err)
	}
	return n == 1, nil
}

// Release drops the lease. Releasing twice, or after expiry, is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release session lock: %w", err)
	}
	return nil
}

// RememberSubmission stores the receipt of a successful submission.
func (r *SessionRegistry) RememberSubmission(ctx context.Context, studentID int, assessmentID model.ID, res *model.SubmissionResult, ttl time.Duration) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	key := config.CacheKey.StudentSubmissionKey(assessmentID.String(), studentID)
	if err := r.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("store receipt: %w", err)
	}
	return nil
}

// Submission returns the stored receipt, or nil if the student has not
// submitted this assessment through the portal.
func (r *SessionRegistry) Submission(ctx context.Context, studentID int, assessmentID model.ID) (*model.SubmissionResult, error) {
	key := config.CacheKey.StudentSubmissionKey(assessmentID.String(), studentID)
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load receipt: %w", err)
	}

	var res model.SubmissionResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &res, nil
}
