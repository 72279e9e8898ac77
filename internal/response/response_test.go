package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-portal/internal/response"
)

func TestFailCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		response.Fail(c, http.StatusConflict, response.ErrSessionAlreadyLive)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "req-1", body.Metadata.RequestID)
	require.NotNil(t, body.Error)
	require.Equal(t, response.ErrSessionAlreadyLive, body.Error.Code)
	require.Equal(t, response.GetMessage(response.ErrSessionAlreadyLive), body.Error.Message)
}

func TestFailWithMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := map[string]struct {
		message string
		want    string
	}{
		"upstream detail": {message: "Assessment already submitted.", want: "Assessment already submitted."},
		"empty falls back": {message: "", want: response.GetMessage(response.ErrSubmitFailed)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			response.FailWithMessage(c, http.StatusBadGateway, response.ErrSubmitFailed, tc.message)

			var body response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.Equal(t, tc.want, body.Error.Message)
			require.NotEmpty(t, body.Metadata.RequestID)
		})
	}
}

func TestRequestIDMiddleware_ReplacesUnusableID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		response.Success(c, http.StatusOK, nil)
	})

	for name, id := range map[string]string{
		"missing":  "",
		"too long": strings.Repeat("a", 65),
		"spaces":   "two words",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if id != "" {
				req.Header.Set("X-Request-ID", id)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			require.NotEqual(t, id, got)
			_, err := uuid.Parse(got)
			require.NoError(t, err)
		})
	}
}
