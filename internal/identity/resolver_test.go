package identity

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"presence-service/internal/mocks"
)

func TestClaimedIdentityPreferred(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	r := NewResolver(verifier, false)

	id, err := r.Resolve(context.Background(), "some-token", "alice", "Alice", "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.False(t, id.Anonymous)
	// Token is never verified when the client supplies a known identity.
	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestVerifiedToken(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", mock.Anything, "tok").Return("u42", "user-u42", nil).Once()
	r := NewResolver(verifier, false)

	id, err := r.Resolve(context.Background(), "tok", "", "", "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "u42", id.UserID)
	assert.Equal(t, "user-u42", id.DisplayName)
	verifier.AssertExpectations(t)
}

func TestVerificationFailureDowngradesToAnonymous(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", mock.Anything, "bad").Return("", "", assert.AnError).Once()
	r := NewResolver(verifier, false)

	id, err := r.Resolve(context.Background(), "bad", "", "", "conn-123456789")
	require.NoError(t, err)
	assert.True(t, id.Anonymous)
	assert.Equal(t, "anon-conn-1", id.UserID)
	assert.Equal(t, "Anonymous", id.DisplayName)
}

func TestStrictModeRejectsFailedVerification(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", mock.Anything, "bad").Return("", "", assert.AnError).Once()
	r := NewResolver(verifier, true)

	_, err := r.Resolve(context.Background(), "bad", "", "", "conn-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStrictModeRejectsMissingToken(t *testing.T) {
	r := NewResolver(nil, true)

	_, err := r.Resolve(context.Background(), "", "", "", "conn-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNoVerifierNoTokenResolvesAnonymous(t *testing.T) {
	r := NewResolver(nil, false)

	id, err := r.Resolve(context.Background(), "", "", "Guest", "abcdef123")
	require.NoError(t, err)
	assert.True(t, id.Anonymous)
	assert.Equal(t, "anon-abcdef", id.UserID)
	assert.Equal(t, "Guest", id.DisplayName)
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret")
	require.NotNil(t, v)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "alice",
		"name": "Alice",
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	userID, name, err := v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
	assert.Equal(t, "Alice", name)
}

func TestJWTVerifierRejectsBadSignature(t *testing.T) {
	v := NewJWTVerifier("secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, _, err = v.Verify(context.Background(), signed)
	assert.Error(t, err)
}

func TestJWTVerifierDisabledWithoutSecret(t *testing.T) {
	assert.Nil(t, NewJWTVerifier(""))
}
