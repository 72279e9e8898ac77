package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "")
	t.Setenv("CONFIRM_TIMEOUT_SECONDS", "")

	cfg := Load()
	require.Equal(t, "http://localhost:8000/api", cfg.GatewayBaseURL)
	require.Equal(t, 2*time.Minute, cfg.ConfirmTimeout)
	require.Equal(t, 5*time.Minute, cfg.SessionLockGrace)
	require.Nil(t, cfg.AllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "https://api.school.test/api/")
	t.Setenv("GATEWAY_TIMEOUT_SECONDS", "5")
	t.Setenv("SESSION_LOCK_GRACE_MINUTES", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://portal.school.test , ,http://localhost:5173")

	cfg := Load()
	require.Equal(t, "https://api.school.test/api", cfg.GatewayBaseURL)
	require.Equal(t, 5*time.Second, cfg.GatewayTimeout)
	require.Equal(t, 5*time.Minute, cfg.SessionLockGrace, "invalid numbers fall back to the default")
	require.Equal(t, []string{"https://portal.school.test", "http://localhost:5173"}, cfg.AllowedOrigins)
}
