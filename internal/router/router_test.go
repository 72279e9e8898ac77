package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/handler"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/router"
	"github.com/stemsi/exstem-portal/internal/service"
)

func TestSetupRouter(t *testing.T) {
	cfg := &config.Config{GinMode: gin.TestMode, JWTSecret: "s"}
	limiter := middleware.NewRateLimiter(10, time.Minute)
	t.Cleanup(limiter.Stop)

	r := router.SetupRouter(service.NewAuthService(cfg), limiter, &router.Handlers{
		Assessment: &handler.AssessmentHandler{},
		WS:         &handler.WSHandler{},
	}, cfg)

	tests := map[string]struct {
		path string
		want int
	}{
		"health":                 {path: "/health", want: http.StatusOK},
		"metrics":                {path: "/metrics", want: http.StatusOK},
		"assessments need token": {path: "/api/v1/student/assessments", want: http.StatusUnauthorized},
		"session needs token":    {path: "/ws/v1/student/assessments/42/session", want: http.StatusUnauthorized},
		"pprof only in debug":    {path: "/debug/pprof/", want: http.StatusNotFound},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, tc.want, w.Code)
		})
	}
}
