package server

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-agent/internal/config"
)

const testSecret = "test-secret-at-least-16"

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)
	_, err = NewJWTService(config.AuthConfig{})
	assert.Error(t, err)
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, JWTExpirationHours: 2})
	require.NoError(t, err)

	id := uuid.New()
	token, err := svc.GenerateToken(id)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.GetEditorID())
	assert.Equal(t, id.String(), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Minute)

	getter, err := svc.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, getter.GetEditorID())
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	other, err := NewJWTService(config.AuthConfig{JWTSecret: "another-secret-of-16"})
	require.NoError(t, err)

	foreign, err := other.GenerateToken(uuid.New())
	require.NoError(t, err)

	expiring, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	expiring.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, err := expiring.GenerateToken(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "empty"},
		{"garbage", "not.a.token", "malformed"},
		{"wrong secret", foreign, "signature"},
		{"expired", expired, "expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
