package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/session"
)

// manualClock hands out tickers whose ticks are delivered by the test.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func (c *manualClock) NewTicker(time.Duration) session.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	tk := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, tk)
	return tk
}

func (c *manualClock) current(t *testing.T) *manualTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.tickers, "countdown was never armed")
	return c.tickers[len(c.tickers)-1]
}

// advance delivers n ticks, failing if the countdown stops consuming them.
func (c *manualClock) advance(t *testing.T, n int) {
	t.Helper()
	tk := c.current(t)
	for i := 0; i < n; i++ {
		select {
		case tk.ch <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("tick %d of %d was not consumed", i+1, n)
		}
	}
}

// tryTick reports whether a single tick was consumed within a short window.
func (c *manualClock) tryTick(t *testing.T) bool {
	t.Helper()
	tk := c.current(t)
	select {
	case tk.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type submitCall struct {
	ID  model.ID
	Sub model.Submission
}

type fakeGateway struct {
	mu          sync.Mutex
	assessments []model.Assessment
	fetchErr    error
	submitErr   error
	submits     []submitCall
	// block, when set, holds SubmitAssessment until it is closed.
	block chan struct{}
}

func (g *fakeGateway) FetchAssessments(context.Context) ([]model.Assessment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.assessments, nil
}

func (g *fakeGateway) SubmitAssessment(_ context.Context, id model.ID, sub model.Submission) (*model.SubmissionResult, error) {
	g.mu.Lock()
	g.submits = append(g.submits, submitCall{ID: id, Sub: sub})
	block, err := g.block, g.submitErr
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &model.SubmissionResult{SubmissionID: "sub-1", Message: "Assessment submitted successfully"}, nil
}

func (g *fakeGateway) calls() []submitCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]submitCall(nil), g.submits...)
}

// pendingPrompt blocks Confirm until the test answers.
type pendingPrompt struct {
	asked  chan session.ConfirmRequest
	answer chan bool
}

func newPendingPrompt() *pendingPrompt {
	return &pendingPrompt{
		asked:  make(chan session.ConfirmRequest, 1),
		answer: make(chan bool, 1),
	}
}

func (p *pendingPrompt) Confirm(ctx context.Context, req session.ConfirmRequest) (bool, error) {
	p.asked <- req
	select {
	case ok := <-p.answer:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func confirmWith(ok bool) session.ConfirmationPrompt {
	return session.ConfirmFunc(func(context.Context, session.ConfirmRequest) (bool, error) {
		return ok, nil
	})
}

var errNetwork = errors.New("connection reset by peer")

// sampleAssessment is a 10 minute assessment with a multiple choice and an
// essay question.
func sampleAssessment() model.Assessment {
	return model.Assessment{
		ID:              "42",
		Title:           "Mid-term Biology",
		DurationMinutes: 10,
		TotalMarks:      decimal.NewFromInt(10),
		AssessmentType:  model.AssessmentTypeFinalExam,
		Questions: []model.Question{
			{
				ID:       "q1",
				Position: 1,
				Marks:    decimal.NewFromInt(5),
				Text:     "Which organelle produces ATP?",
				Variant: model.MultipleChoice{Options: []model.Option{
					{ID: "optionA", Label: "A", Text: "Mitochondria"},
					{ID: "optionB", Label: "B", Text: "Ribosome"},
				}},
			},
			{
				ID:       "q2",
				Position: 2,
				Marks:    decimal.NewFromInt(5),
				Text:     "Describe osmosis.",
				Variant:  model.Essay{},
			},
		},
	}
}

type sessionOptions struct {
	prompt    session.ConfirmationPrompt
	observers []session.Observer
}

type sessionOption func(*sessionOptions)

func withPrompt(p session.ConfirmationPrompt) sessionOption {
	return func(o *sessionOptions) { o.prompt = p }
}

func withObserver(obs session.Observer) sessionOption {
	return func(o *sessionOptions) { o.observers = append(o.observers, obs) }
}

func makeSession(t *testing.T, gw *fakeGateway, clock *manualClock, opts ...sessionOption) *session.Session {
	t.Helper()

	o := sessionOptions{prompt: confirmWith(true)}
	for _, opt := range opts {
		opt(&o)
	}

	s := session.New(session.Config{
		AssessmentID: "42",
		Gateway:      gw,
		Prompt:       o.prompt,
		Observers:    o.observers,
		Logger:       zerolog.Nop(),
		NewTicker:    clock.NewTicker,
	})
	t.Cleanup(s.Close)
	return s
}

// startedSession returns a session that has loaded sampleAssessment and started.
func startedSession(t *testing.T, gw *fakeGateway, clock *manualClock, opts ...sessionOption) *session.Session {
	t.Helper()

	a := sampleAssessment()
	s := makeSession(t, gw, clock, opts...)
	require.NoError(t, s.Load(context.Background(), &a))
	require.NoError(t, s.Start(context.Background()))
	return s
}

func waitForState(t *testing.T, s *session.Session, want session.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == want
	}, 2*time.Second, 5*time.Millisecond, "session never reached %s", want)
}

// recorder is an Observer that keeps every notification.
type recorder struct {
	mu     sync.Mutex
	states []session.State
	ticks  []int
}

func (r *recorder) StateChanged(snap session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, snap.State)
}

func (r *recorder) Ticked(_ model.ID, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recorder) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func (r *recorder) stateLog() []session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.State(nil), r.states...)
}
