// internal/utils/jwt_test.go
package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	userID := uuid.New()

	token, err := GenerateJWT(userID, "alice", "registered", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "registered", claims.UserType)
}

func TestValidateJWTRejectsGarbage(t *testing.T) {
	SetJWTSecret("test-secret")

	_, err := ValidateJWT("not-a-token")
	assert.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	userID := uuid.New()

	token, err := GenerateRefreshToken(userID, 24)
	require.NoError(t, err)

	subject, err := ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), subject)
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	SetJWTSecret("test-secret")

	access, err := GenerateJWT(uuid.New(), "alice", "registered", 1)
	require.NoError(t, err)

	_, err = ValidateRefreshToken(access)
	assert.Error(t, err)
}
