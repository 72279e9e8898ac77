package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-portal/internal/gateway"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/session"
)

func TestSessionErrorCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		code response.ErrCode
		msg  string
	}{
		"closed":     {err: session.ErrSessionClosed, code: response.ErrSessionClosed},
		"canceled":   {err: fmt.Errorf("fetch: %w", context.Canceled), code: response.ErrSessionClosed},
		"declined":   {err: session.ErrSubmitDeclined, code: response.ErrSubmitDeclined},
		"superseded": {err: session.ErrSubmitSuperseded, code: response.ErrSubmitSuperseded},
		"dispatched": {err: session.ErrSubmitAlreadyDispatched, code: response.ErrSubmitInProgress},
		"pending":    {err: errConfirmPending, code: response.ErrSubmitInProgress},
		"state":      {err: &session.StateError{Op: "start", State: session.StateInProgress}, code: response.ErrInvalidState},
		"not found": {
			err:  &session.LoadError{Reason: "assessment 9", Err: session.ErrAssessmentNotFound},
			code: response.ErrAssessmentNotFound,
		},
		"bad content": {
			err:  &session.LoadError{Reason: "assessment content", Err: fmt.Errorf("%w: no questions", model.ErrInvalidAssessment)},
			code: response.ErrAssessmentInvalid,
		},
		"fetch failed": {
			err:  &session.LoadError{Reason: "fetch assessments", Err: errors.New("dial tcp: refused")},
			code: response.ErrLoadFailed,
		},
		"unauthorized": {
			err:  &session.LoadError{Reason: "fetch assessments", Err: &gateway.StatusError{Code: http.StatusUnauthorized, Message: "Unauthenticated."}},
			code: response.ErrTokenInvalid,
		},
		"upstream rejection keeps message": {
			err:  &session.SubmitError{Err: &gateway.StatusError{Code: http.StatusUnprocessableEntity, Message: "Assessment closed"}},
			code: response.ErrSubmitFailed,
			msg:  "Assessment closed",
		},
		"answer":  {err: fmt.Errorf("%w: %q", model.ErrInvalidAnswer, "Z"), code: response.ErrInvalidAnswer},
		"pair":    {err: model.ErrPairOutOfRange, code: response.ErrInvalidAnswer},
		"unknown": {err: errors.New("boom"), code: response.ErrInternal},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			code, msg := sessionErrorCode(tc.err)
			assert.Equal(t, tc.code, code)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, msg)
			} else {
				assert.Equal(t, response.GetMessage(tc.code), msg)
			}
		})
	}
}
