package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte(strings.Repeat("s", MinSecretLength))

func TestIssueAndParseAdminToken(t *testing.T) {
	token, exp, err := IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseAdminToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestParseAdminTokenRejects(t *testing.T) {
	other := []byte(strings.Repeat("o", MinSecretLength))
	token, _, err := IssueAdminToken(other, "ops", time.Hour)
	require.NoError(t, err)
	_, err = ParseAdminToken(secret, token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired, _, err := IssueAdminToken(secret, "ops", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAdminToken(secret, expired)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	viewer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "viewer",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = ParseAdminToken(secret, viewer)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = ParseAdminToken(secret, "not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestWeakSecret(t *testing.T) {
	_, _, err := IssueAdminToken([]byte("short"), "ops", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)
	_, err = ParseAdminToken([]byte("short"), "x")
	assert.ErrorIs(t, err, ErrWeakSecret)
}
