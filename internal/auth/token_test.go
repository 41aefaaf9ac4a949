package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	signed, err := tokens.Issue("p001", "patient")
	assert.NoError(t, err)
	assert.NotEmpty(t, signed)

	identity, err := tokens.Verify(signed)
	assert.NoError(t, err)
	assert.Equal(t, "p001", identity.UserID)
	assert.Equal(t, "patient", identity.Role)
}

func TestVerify_WrongSecret(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	other := NewTokenService("other-secret", time.Hour)

	signed, err := tokens.Issue("p001", "patient")
	assert.NoError(t, err)

	_, err = other.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_ExpiredToken(t *testing.T) {
	tokens := NewTokenService("test-secret", -time.Minute)

	signed, err := tokens.Issue("p001", "patient")
	assert.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	_, err := tokens.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiry(t *testing.T) {
	tokens := NewTokenService("test-secret", 45*time.Minute)

	assert.Equal(t, 45*time.Minute, tokens.Expiry())
}
