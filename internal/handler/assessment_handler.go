package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stemsi/exstem-portal/internal/gateway"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stemsi/exstem-portal/internal/session"
)

// AssessmentHandler serves the student's assessment list, the page a
// session returns to.
type AssessmentHandler struct {
	gateway  session.Gateway
	registry *service.SessionRegistry
	log      zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(gw session.Gateway, registry *service.SessionRegistry, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		gateway:  gw,
		registry: registry,
		log:      log.With().Str("component", "assessment_handler").Logger(),
	}
}

// AssessmentSummary is a list entry without question content.
type AssessmentSummary struct {
	ID              model.ID                `json:"id"`
	Title           string                  `json:"title"`
	Subject         string                  `json:"subject_name,omitempty"`
	ClassName       string                  `json:"class_name,omitempty"`
	DurationMinutes int                     `json:"duration_minutes"`
	TotalMarks      decimal.Decimal         `json:"total_marks"`
	AssessmentType  model.AssessmentType    `json:"assessment_type,omitempty"`
	QuestionCount   int                     `json:"question_count"`
	Submission      *model.SubmissionResult `json:"submission,omitempty"`
}

// List godoc
// GET /api/v1/student/assessments
// Returns the student's assessments, marking those already submitted here.
func (h *AssessmentHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ctx := gateway.WithCredential(c.Request.Context(), middleware.GetToken(c))
	list, err := h.gateway.FetchAssessments(ctx)
	if err != nil {
		h.log.Warn().Err(err).Int("student_id", claims.UserID).Msg("Fetch assessments failed")
		code, msg := sessionErrorCode(err)
		status := http.StatusBadGateway
		if code == response.ErrTokenInvalid {
			status = http.StatusUnauthorized
		} else {
			code = response.ErrGatewayUnavailable
		}
		response.FailWithMessage(c, status, code, msg)
		return
	}

	out := make([]AssessmentSummary, 0, len(list))
	for _, a := range list {
		s := AssessmentSummary{
			ID:              a.ID,
			Title:           a.Title,
			Subject:         a.Subject,
			ClassName:       a.ClassName,
			DurationMinutes: a.DurationMinutes,
			TotalMarks:      a.TotalMarks,
			AssessmentType:  a.AssessmentType,
			QuestionCount:   len(a.Questions),
		}
		receipt, err := h.registry.Submission(ctx, claims.UserID, a.ID)
		if err != nil {
			h.log.Warn().Err(err).Str("assessment_id", a.ID.String()).Msg("Receipt lookup failed")
		}
		s.Submission = receipt
		out = append(out, s)
	}

	response.Success(c, http.StatusOK, gin.H{"assessments": out})
}
