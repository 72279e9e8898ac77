package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/stemsi/exstem-portal/internal/gateway"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/session"
)

// sessionErrorCode maps a session, model or gateway error to the code and
// message shown to the student. Upstream rejection messages are passed through.
func sessionErrorCode(err error) (response.ErrCode, string) {
	code := classify(err)

	var se *gateway.StatusError
	if errors.As(err, &se) && se.Message != "" && code != response.ErrTokenInvalid {
		return code, se.Message
	}
	return code, response.GetMessage(code)
}

func classify(err error) response.ErrCode {
	var submitErr *session.SubmitError
	var loadErr *session.LoadError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, context.Canceled):
		return response.ErrSessionClosed
	case errors.Is(err, session.ErrSubmitDeclined):
		return response.ErrSubmitDeclined
	case errors.Is(err, session.ErrSubmitSuperseded):
		return response.ErrSubmitSuperseded
	case errors.Is(err, session.ErrSubmitAlreadyDispatched), errors.Is(err, errConfirmPending):
		return response.ErrSubmitInProgress
	case errors.Is(err, session.ErrInvalidState), errors.Is(err, session.ErrStoreFrozen):
		return response.ErrInvalidState
	case errors.Is(err, gateway.ErrNoCredential),
		gateway.IsStatus(err, http.StatusUnauthorized):
		return response.ErrTokenInvalid
	case errors.As(err, &submitErr):
		return response.ErrSubmitFailed
	case errors.Is(err, session.ErrAssessmentNotFound):
		return response.ErrAssessmentNotFound
	case errors.Is(err, model.ErrInvalidAssessment), errors.Is(err, model.ErrDuplicateQuestion):
		return response.ErrAssessmentInvalid
	case errors.As(err, &loadErr):
		return response.ErrLoadFailed
	case errors.Is(err, model.ErrInvalidAnswer),
		errors.Is(err, model.ErrUnexpectedPair),
		errors.Is(err, model.ErrMissingPair),
		errors.Is(err, model.ErrPairOutOfRange),
		errors.Is(err, model.ErrUnknownQuestion):
		return response.ErrInvalidAnswer
	}
	return response.ErrInternal
}
