package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/model"
)

// State enumerates the lifecycle of a session.
type State string

const (
	StateLoading      State = "LOADING"
	StateReadyToStart State = "READY_TO_START"
	StateInProgress   State = "IN_PROGRESS"
	StateSubmitting   State = "SUBMITTING"
	StateSubmitted    State = "SUBMITTED"
	StateErrored      State = "ERRORED"
)

// Terminal reports whether no further transition can leave s.
// ERRORED is terminal once reached; a load failure is never retried in place.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateErrored
}

// Trigger says what started a submission.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

// DefaultReturnPath is where the student is sent after the session ends.
const DefaultReturnPath = "/student/assessments"

// Gateway is the remote API that serves assessments and accepts submissions.
type Gateway interface {
	FetchAssessments(ctx context.Context) ([]model.Assessment, error)
	SubmitAssessment(ctx context.Context, id model.ID, sub model.Submission) (*model.SubmissionResult, error)
}

// ConfirmRequest is what the student is shown before a manual submission.
type ConfirmRequest struct {
	Answered  int
	Total     int
	Remaining int
}

// ConfirmationPrompt asks the student to confirm a manual submission.
// It may block until the student answers or ctx is done.
type ConfirmationPrompt interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// ConfirmFunc adapts a function to ConfirmationPrompt.
type ConfirmFunc func(ctx context.Context, req ConfirmRequest) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	return f(ctx, req)
}

// Observer is told about state changes and countdown ticks. Calls happen
// outside the session lock, from whichever goroutine caused the change.
type Observer interface {
	StateChanged(snap Snapshot)
	Ticked(assessmentID model.ID, remaining int)
}

// Snapshot is a consistent read of the session for rendering.
type Snapshot struct {
	AssessmentID model.ID
	State        State
	Previous     State
	Duration     int
	Remaining    int
	Answered     int
	Total        int
	Trigger      Trigger
	TimeTaken    int
	Result       *model.SubmissionResult
	Err          error
}

// Outcome is handed back to the page once the session is over.
type Outcome struct {
	NavigateTo   string
	Message      string
	SubmissionID model.ID
	Error        string
}

// Config wires a Session to its collaborators.
type Config struct {
	AssessmentID model.ID
	Gateway      Gateway
	Prompt       ConfirmationPrompt
	Observers    []Observer
	Logger       zerolog.Logger
	// NewTicker drives the countdown; nil uses real time.
	NewTicker  TickerFunc
	ReturnPath string
}

// Session is one student's attempt at one assessment.
type Session struct {
	cfg   Config
	log   zerolog.Logger
	timer *CountdownTimer

	mu               sync.Mutex
	state            State
	previous         State
	closed           bool
	loadStarted      bool
	assessment       *model.Assessment
	answers          *AnswerStore
	duration         int
	remaining        int
	submitDispatched bool
	answeredAtSubmit int
	trigger          Trigger
	timeTaken        int
	result           *model.SubmissionResult
	err              error
	// runCtx carries the values of the context passed to Start, detached from
	// its cancellation, for the timeout-triggered submit.
	runCtx context.Context
}

// New creates a session in LOADING. Call Load next.
func New(cfg Config) *Session {
	if cfg.Prompt == nil {
		// Without a way to ask, a manual submit is never confirmed.
		cfg.Prompt = ConfirmFunc(func(context.Context, ConfirmRequest) (bool, error) { return false, nil })
	}
	if cfg.ReturnPath == "" {
		cfg.ReturnPath = DefaultReturnPath
	}

	s := &Session{
		cfg: cfg,
		log: cfg.Logger.With().
			Str("component", "assessment_session").
			Str("assessment_id", cfg.AssessmentID.String()).
			Logger(),
		state:  StateLoading,
		runCtx: context.Background(),
	}
	s.timer = NewCountdownTimer(cfg.NewTicker, s.handleTick, s.handleExpire)
	return s
}

// Load resolves the assessment content. A preloaded assessment with the
// session's id skips the fetch.
func (s *Session) Load(ctx context.Context, preloaded *model.Assessment) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateLoading || s.loadStarted {
		err := &StateError{Op: "load", State: s.state}
		s.mu.Unlock()
		return err
	}
	s.loadStarted = true
	s.mu.Unlock()

	a, err := s.resolve(ctx, preloaded)
	if err != nil {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrSessionClosed
		}
		s.err = err
		snap := s.transitionLocked(StateErrored)
		s.mu.Unlock()

		s.log.Warn().Err(err).Msg("Assessment load failed")
		s.notify(snap)
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.assessment = a
	s.answers = NewAnswerStore(a)
	s.duration = a.DurationSeconds()
	s.remaining = s.duration
	snap := s.transitionLocked(StateReadyToStart)
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Session) resolve(ctx context.Context, preloaded *model.Assessment) (*model.Assessment, error) {
	var a *model.Assessment

	if preloaded != nil && preloaded.ID == s.cfg.AssessmentID {
		a = preloaded
	} else {
		list, err := s.cfg.Gateway.FetchAssessments(ctx)
		if err != nil {
			return nil, &LoadError{Reason: "fetch assessments", Err: err}
		}
		for i := range list {
			if list[i].ID == s.cfg.AssessmentID {
				a = &list[i]
				break
			}
		}
		if a == nil {
			return nil, &LoadError{Reason: "assessment " + s.cfg.AssessmentID.String(), Err: ErrAssessmentNotFound}
		}
	}

	if err := a.Check(); err != nil {
		return nil, &LoadError{Reason: "assessment content", Err: err}
	}
	return a, nil
}

// Start arms the countdown and opens the session for answers.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateReadyToStart {
		err := &StateError{Op: "start", State: s.state}
		s.mu.Unlock()
		return err
	}

	s.runCtx = context.WithoutCancel(ctx)
	s.remaining = s.duration
	if err := s.timer.Arm(s.duration); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("arm countdown: %w", err)
	}
	snap := s.transitionLocked(StateInProgress)
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// RecordAnswer stores one answer while the session is in progress.
func (s *Session) RecordAnswer(key model.AnswerKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateInProgress || s.submitDispatched {
		return &StateError{Op: "record answer", State: s.state}
	}
	return s.answers.Record(key, value)
}

// RequestSubmit ends the session. A manual request (automatic=false) first
// asks the ConfirmationPrompt; declining leaves the session untouched. At most
// one gateway call is issued per session whatever the number of triggers.
func (s *Session) RequestSubmit(ctx context.Context, automatic bool) (*model.SubmissionResult, error) {
	s.mu.Lock()
	if err := s.submittableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	trigger := TriggerTimeout
	submitCtx := s.runCtx
	if !automatic {
		trigger = TriggerManual
		submitCtx = context.WithoutCancel(ctx)

		req := ConfirmRequest{
			Answered:  s.answers.Answered(),
			Total:     s.answers.Total(),
			Remaining: s.remaining,
		}
		s.mu.Unlock()

		ok, confirmErr := s.cfg.Prompt.Confirm(ctx, req)

		s.mu.Lock()
		if s.submitDispatched {
			s.mu.Unlock()
			s.log.Debug().Bool("confirmed", ok).Msg("Discarding confirmation, submission already dispatched")
			return nil, ErrSubmitSuperseded
		}
		if err := s.submittableLocked(); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if confirmErr != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("confirm submission: %w", confirmErr)
		}
		if !ok {
			s.mu.Unlock()
			return nil, ErrSubmitDeclined
		}
	}

	// The guard is set before any asynchronous work so a racing trigger
	// observes it and is dropped.
	s.submitDispatched = true
	s.timer.Cancel()
	s.answers.Freeze()
	s.answeredAtSubmit = s.answers.Answered()
	s.trigger = trigger
	s.timeTaken = s.duration - s.remaining

	id := s.assessment.ID
	sub := model.Submission{
		Answers:   s.answers.Snapshot(),
		TimeTaken: s.timeTaken,
	}
	snap := s.transitionLocked(StateSubmitting)
	s.mu.Unlock()

	s.log.Info().
		Str("trigger", string(trigger)).
		Int("time_taken", sub.TimeTaken).
		Int("answers", len(sub.Answers)).
		Msg("Submitting assessment")
	s.notify(snap)

	res, err := s.cfg.Gateway.SubmitAssessment(submitCtx, id, sub)

	s.mu.Lock()
	if err != nil {
		s.err = &SubmitError{Err: err}
		snap = s.transitionLocked(StateErrored)
		s.mu.Unlock()

		s.log.Error().Err(err).Str("trigger", string(trigger)).Msg("Submission failed")
		s.notify(snap)
		return nil, snap.Err
	}

	s.result = res
	s.answers = nil
	snap = s.transitionLocked(StateSubmitted)
	s.mu.Unlock()

	s.log.Info().
		Str("submission_id", res.SubmissionID.String()).
		Str("trigger", string(trigger)).
		Msg("Assessment submitted")
	s.notify(snap)
	return res, nil
}

func (s *Session) submittableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.submitDispatched {
		return ErrSubmitAlreadyDispatched
	}
	if s.state != StateInProgress {
		return &StateError{Op: "submit", State: s.state}
	}
	return nil
}

// Close tears the session down with the view. The countdown stops at once and
// every later call is rejected. A submission already on the wire is not
// cancelled; its outcome is still recorded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.timer.Cancel()

	s.log.Debug().Str("state", string(s.state)).Msg("Session closed")
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Assessment returns the loaded assessment, or nil before READY_TO_START.
func (s *Session) Assessment() *model.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assessment
}

// Answers returns a copy of the recorded answers. After a failed submission
// the frozen answers remain readable; after success they are discarded.
func (s *Session) Answers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.answers == nil {
		return nil
	}
	return s.answers.Snapshot()
}

// Outcome describes where the page should go once the session is terminal.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSubmitted:
		return Outcome{
			NavigateTo:   s.cfg.ReturnPath,
			Message:      s.result.Message,
			SubmissionID: s.result.SubmissionID,
		}, true
	case StateErrored:
		return Outcome{
			NavigateTo: s.cfg.ReturnPath,
			Error:      s.err.Error(),
		}, true
	}
	return Outcome{}, false
}

func (s *Session) handleTick(remaining int) {
	s.mu.Lock()
	if s.closed || s.state != StateInProgress || s.submitDispatched {
		s.mu.Unlock()
		return
	}
	s.remaining = remaining
	s.mu.Unlock()

	for _, o := range s.cfg.Observers {
		o.Ticked(s.cfg.AssessmentID, remaining)
	}
}

func (s *Session) handleExpire() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	s.log.Info().Msg("Time is up, forcing submission")

	_, err := s.RequestSubmit(ctx, true)
	switch {
	case err == nil:
	case errors.Is(err, ErrSubmitAlreadyDispatched), errors.Is(err, ErrSessionClosed):
		s.log.Debug().Err(err).Msg("Forced submission dropped")
	default:
		s.log.Error().Err(err).Msg("Forced submission failed")
	}
}

func (s *Session) transitionLocked(to State) Snapshot {
	s.previous, s.state = s.state, to
	if to != StateInProgress {
		s.timer.Cancel()
	}

	s.log.Debug().
		Str("from", string(s.previous)).
		Str("to", string(to)).
		Int("remaining", s.remaining).
		Msg("Session transition")

	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		AssessmentID: s.cfg.AssessmentID,
		State:        s.state,
		Previous:     s.previous,
		Duration:     s.duration,
		Remaining:    s.remaining,
		Trigger:      s.trigger,
		TimeTaken:    s.timeTaken,
		Result:       s.result,
		Err:          s.err,
	}
	if s.assessment != nil {
		snap.Total = len(s.assessment.Questions)
	}
	if s.answers != nil {
		snap.Answered = s.answers.Answered()
	} else {
		snap.Answered = s.answeredAtSubmit
	}
	return snap
}

func (s *Session) notify(snap Snapshot) {
	for _, o := range s.cfg.Observers {
		o.StateChanged(snap)
	}
}
