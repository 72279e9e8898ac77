package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-portal/internal/gateway"
	"github.com/stemsi/exstem-portal/internal/metrics"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stemsi/exstem-portal/internal/session"
	"github.com/stemsi/exstem-portal/internal/validator"
	ws "github.com/stemsi/exstem-portal/internal/websocket"
)

// receiptTTL is how long a submission receipt blocks reopening an assessment.
const receiptTTL = 24 * time.Hour

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSConfig wires a WSHandler.
type WSConfig struct {
	Gateway        session.Gateway
	Registry       *service.SessionRegistry
	Redis          *redis.Client
	Metrics        *metrics.Collectors
	Limiter        *middleware.RateLimiter
	Logger         zerolog.Logger
	AllowedOrigins []string
	ConfirmTimeout time.Duration
	ReturnPath     string
	// NewTicker drives session countdowns; nil uses real time.
	NewTicker session.TickerFunc
}

// WSHandler runs one assessment session per WebSocket connection.
type WSHandler struct {
	cfg      WSConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(cfg WSConfig) *WSHandler {
	return &WSHandler{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(cfg.AllowedOrigins),
	}
}

type streamParams struct {
	AssessmentID string `json:"assessment_id" validate:"required,max=64,printascii"`
}

// AssessmentStream godoc
// WS /ws/v1/student/assessments/:assessment_id/session
// Upgrades to WebSocket and drives a timed assessment session.
func (h *WSHandler) AssessmentStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	params := streamParams{AssessmentID: c.Param("assessment_id")}
	if err := validator.Struct(&params); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidID, validator.TranslateErrors(err))
		return
	}
	assessmentID := model.ID(params.AssessmentID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	wc := ws.NewConn(conn)
	defer wc.Shutdown()

	studentID := claims.UserID
	wsLog := h.log.With().
		Str("request_id", response.RequestID(c)).
		Int("student_id", studentID).
		Str("assessment_id", assessmentID.String()).
		Logger()

	// The student's own token authenticates every gateway call of this session.
	ctx, cancel := context.WithCancel(gateway.WithCredential(c.Request.Context(), middleware.GetToken(c)))
	defer cancel()

	receipt, err := h.cfg.Registry.Submission(ctx, studentID, assessmentID)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Receipt lookup failed")
	}
	if receipt != nil {
		_ = wc.WriteTyped(ws.SubmittedResponse{
			Event:        ws.EventSubmitted,
			SubmissionID: receipt.SubmissionID,
			Message:      response.GetMessage(response.ErrAlreadySubmitted),
			NavigateTo:   h.returnPath(),
		})
		wc.CloseNormal(string(response.ErrAlreadySubmitted))
		return
	}

	lease, err := h.cfg.Registry.Acquire(ctx, studentID, assessmentID)
	if err != nil {
		code := response.ErrInternal
		if errors.Is(err, service.ErrSessionAlreadyLive) {
			code = response.ErrSessionAlreadyLive
			h.cfg.Metrics.LockRejected()
		} else {
			wsLog.Error().Err(err).Msg("Session lock failed")
		}
		_ = wc.WriteError(string(code), response.GetMessage(code), nil)
		wc.CloseNormal(string(code))
		return
	}

	run := &streamRun{
		h:         h,
		conn:      wc,
		log:       wsLog,
		lease:     lease,
		studentID: studentID,
		prompt:    newWSPrompt(wc, h.cfg.ConfirmTimeout),
	}
	run.sess = session.New(session.Config{
		AssessmentID: assessmentID,
		Gateway:      h.cfg.Gateway,
		Prompt:       run.prompt,
		Observers: []session.Observer{
			run,
			service.NewEventPublisher(h.cfg.Redis, wsLog, studentID),
			h.cfg.Metrics,
		},
		Logger:     wsLog,
		NewTicker:  h.cfg.NewTicker,
		ReturnPath: h.returnPath(),
	})

	wsLog.Info().Msg("Student connected")
	run.serve(ctx)
	cancel()
	run.teardown()
}

func (h *WSHandler) returnPath() string {
	if h.cfg.ReturnPath == "" {
		return session.DefaultReturnPath
	}
	return h.cfg.ReturnPath
}

// streamRun is one connection's session. It renders the session onto the
// socket as an Observer.
type streamRun struct {
	h         *WSHandler
	conn      *ws.Conn
	log       zerolog.Logger
	sess      *session.Session
	lease     *service.Lease
	prompt    *wsPrompt
	studentID int
}

func (r *streamRun) serve(ctx context.Context) {
	if err := r.sess.Load(ctx, nil); err != nil {
		r.log.Warn().Err(err).Msg("Load failed")
		// The ERRORED observer already reported and closed; drain until the
		// peer acknowledges the close.
	}

	rateKey := "ws:" + strconv.Itoa(r.studentID)

	for {
		var req ws.Request
		if err := r.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				_ = r.conn.WriteError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload), nil)
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				r.log.Debug().Err(err).Msg("Connection closed")
			}
			return
		}

		if err := validator.Struct(&req); err != nil {
			_ = r.conn.WriteError(string(response.ErrValidation), response.GetMessage(response.ErrValidation), validator.TranslateErrors(err))
			continue
		}

		switch req.Action {
		case ws.ActionStart:
			if err := r.sess.Start(ctx); err != nil {
				r.writeErr(err)
			}
		case ws.ActionAnswer:
			if r.h.cfg.Limiter != nil && !r.h.cfg.Limiter.Allow(rateKey) {
				_ = r.conn.WriteError(string(response.ErrRateLimitExceeded), response.GetMessage(response.ErrRateLimitExceeded), nil)
				continue
			}
			r.answer(req)
		case ws.ActionSubmit:
			// Confirmation arrives through this loop, so the request must not block it.
			go r.submit(ctx)
		case ws.ActionConfirm:
			if !r.prompt.Resolve(req.OK) {
				_ = r.conn.WriteError(string(response.ErrInvalidState), "no confirmation pending", nil)
			}
		case ws.ActionPing:
			_ = r.conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		}
	}
}

func (r *streamRun) answer(req ws.Request) {
	key := model.QuestionKey(model.ID(req.QID))
	if req.Pair != nil {
		key = model.PairKey(model.ID(req.QID), *req.Pair)
	}

	if err := r.sess.RecordAnswer(key, req.Value); err != nil {
		r.writeErr(err)
		return
	}

	snap := r.sess.Snapshot()
	_ = r.conn.WriteTyped(ws.SavedResponse{
		Event:    ws.EventSaved,
		Key:      key.String(),
		Value:    r.sess.Answers()[key.String()],
		Answered: snap.Answered,
		Total:    snap.Total,
	})
}

func (r *streamRun) submit(ctx context.Context) {
	_, err := r.sess.RequestSubmit(ctx, false)
	var submitErr *session.SubmitError
	if err == nil || errors.As(err, &submitErr) {
		// Outcome is rendered by StateChanged.
		return
	}
	r.writeErr(err)
}

func (r *streamRun) writeErr(err error) {
	code, msg := sessionErrorCode(err)
	if code == response.ErrInternal {
		r.log.Error().Err(err).Msg("Session error")
	}
	_ = r.conn.WriteError(string(code), msg, nil)
}

// teardown closes the session with the view. A submission already on the
// wire finishes on its own and releases the lease from StateChanged.
func (r *streamRun) teardown() {
	r.sess.Close()
	snap := r.sess.Snapshot()

	switch snap.State {
	case session.StateSubmitting:
		r.log.Info().Msg("Disconnected while submitting, awaiting outcome")
		return
	case session.StateInProgress:
		r.h.cfg.Metrics.Abandoned()
		r.log.Warn().Int("remaining", snap.Remaining).Msg("Session abandoned in progress")
	}
	r.release()
}

func (r *streamRun) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.lease.Release(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Session lock release failed")
	}
}

// StateChanged renders a transition.
func (r *streamRun) StateChanged(snap session.Snapshot) {
	_ = r.conn.WriteTyped(ws.StateResponse{
		Event:     ws.EventState,
		State:     string(snap.State),
		Previous:  string(snap.Previous),
		Remaining: snap.Remaining,
		Answered:  snap.Answered,
		Total:     snap.Total,
		Trigger:   string(snap.Trigger),
	})

	switch snap.State {
	case session.StateReadyToStart:
		_ = r.conn.WriteTyped(ws.LoadedResponse{
			Event:      ws.EventLoaded,
			Assessment: r.sess.Assessment(),
			Duration:   snap.Duration,
			Remaining:  snap.Remaining,
		})

	case session.StateInProgress:
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := r.lease.Extend(ctx, r.h.cfg.Registry.LockTTL(snap.Remaining)); err != nil || !ok {
			r.log.Warn().Err(err).Bool("held", ok).Msg("Session lock extend failed")
		}

	case session.StateSubmitted:
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.h.cfg.Registry.RememberSubmission(ctx, r.studentID, snap.AssessmentID, snap.Result, receiptTTL); err != nil {
			r.log.Warn().Err(err).Msg("Storing submission receipt failed")
		}

		outcome, _ := r.sess.Outcome()
		_ = r.conn.WriteTyped(ws.SubmittedResponse{
			Event:        ws.EventSubmitted,
			SubmissionID: outcome.SubmissionID,
			Message:      outcome.Message,
			Trigger:      string(snap.Trigger),
			TimeTaken:    snap.TimeTaken,
			NavigateTo:   outcome.NavigateTo,
		})
		r.release()
		r.conn.CloseNormal(string(snap.State))

	case session.StateErrored:
		code, msg := sessionErrorCode(snap.Err)
		outcome, _ := r.sess.Outcome()
		_ = r.conn.WriteTyped(ws.FailedResponse{
			Event:      ws.EventFailed,
			Code:       string(code),
			Error:      msg,
			NavigateTo: outcome.NavigateTo,
			Answers:    r.sess.Answers(),
		})
		r.release()
		r.conn.CloseNormal(string(snap.State))
	}
}

// Ticked renders the countdown.
func (r *streamRun) Ticked(_ model.ID, remaining int) {
	_ = r.conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, Remaining: remaining})
}

// wsPrompt asks the student over the socket and waits for the matching
// confirm action. No answer within the timeout counts as a decline.
type wsPrompt struct {
	conn    *ws.Conn
	timeout time.Duration

	mu      sync.Mutex
	pending chan bool
}

var errConfirmPending = errors.New("a confirmation is already pending")

func newWSPrompt(conn *ws.Conn, timeout time.Duration) *wsPrompt {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &wsPrompt{conn: conn, timeout: timeout}
}

func (p *wsPrompt) Confirm(ctx context.Context, req session.ConfirmRequest) (bool, error) {
	p.mu.Lock()
	if p.pending != nil {
		p.mu.Unlock()
		return false, errConfirmPending
	}
	answer := make(chan bool, 1)
	p.pending = answer
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.pending == answer {
			p.pending = nil
		}
		p.mu.Unlock()
	}()

	if err := p.conn.WriteTyped(ws.ConfirmRequestResponse{
		Event:     ws.EventConfirmRequest,
		Answered:  req.Answered,
		Total:     req.Total,
		Remaining: req.Remaining,
	}); err != nil {
		return false, err
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case ok := <-answer:
		return ok, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve delivers the student's answer. It reports false if nothing was asked.
func (p *wsPrompt) Resolve(ok bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return false
	}
	p.pending <- ok
	p.pending = nil
	return true
}
