package service_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/service"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, typ service.TokenType, userID int, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: typ,
		UserID:    userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthService_ValidateToken(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: testSecret})

	tests := map[string]struct {
		token   string
		wantErr error
		wantID  int
	}{
		"valid student token": {
			token:  signToken(t, testSecret, service.TokenTypeStudent, 7, time.Hour),
			wantID: 7,
		},
		"expired": {
			token:   signToken(t, testSecret, service.TokenTypeStudent, 7, -time.Minute),
			wantErr: service.ErrTokenExpired,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := auth.ValidateToken(tc.token)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, claims.UserID)
			require.Equal(t, service.TokenTypeStudent, claims.TokenType)
		})
	}

	t.Run("wrong secret", func(t *testing.T) {
		_, err := auth.ValidateToken(signToken(t, "other", service.TokenTypeStudent, 1, time.Hour))
		require.Error(t, err)
		require.NotErrorIs(t, err, service.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := auth.ValidateToken("not-a-jwt")
		require.Error(t, err)
	})
}
