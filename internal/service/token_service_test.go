package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long", time.Hour, "webhook-relay")

	token, expiry, err := svc.Generate("operator")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
}

func TestJWTTokenService_Validate_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long", time.Hour, "webhook-relay")
	other := NewJWTTokenService("a-completely-different-secret-key", time.Hour, "webhook-relay")

	token, _, err := svc.Generate("operator")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long", -time.Minute, "webhook-relay")

	token, _, err := svc.Generate("operator")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long", time.Hour, "webhook-relay")

	_, err := svc.Validate("not.a.token")
	assert.Error(t, err)
}
