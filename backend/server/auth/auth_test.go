package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

func TestNewAuthenticatorRequiresKey(t *testing.T) {
	_, err := NewAuthenticator("", "")
	assert.Error(t, err)
}

func TestCheckPassphrase(t *testing.T) {
	open, err := NewAuthenticator(testSigningKey, "")
	require.NoError(t, err)
	assert.NoError(t, open.CheckPassphrase(""))
	assert.NoError(t, open.CheckPassphrase("anything"))

	locked, err := NewAuthenticator(testSigningKey, "Test1234")
	require.NoError(t, err)
	assert.NoError(t, locked.CheckPassphrase("Test1234"))
	assert.ErrorIs(t, locked.CheckPassphrase("Test5678"), ErrInvalidCredentials)
	assert.ErrorIs(t, locked.CheckPassphrase(""), ErrInvalidCredentials)
}

func TestTokens(t *testing.T) {
	a, err := NewAuthenticator(testSigningKey, "")
	require.NoError(t, err)

	access, refresh, err := a.CreateTokens(OfflineUserID)
	require.NoError(t, err)

	userID, err := a.ParseAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, OfflineUserID, userID)

	// A refresh token cannot be used as an access token and vice versa.
	_, err = a.ParseAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = a.Refresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	newAccess, newRefresh, err := a.Refresh(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
}

func TestTokenSignedWithOtherKey(t *testing.T) {
	a, err := NewAuthenticator(testSigningKey, "")
	require.NoError(t, err)
	other, err := NewAuthenticator("another-key", "")
	require.NoError(t, err)

	access, _, err := other.CreateTokens(OfflineUserID)
	require.NoError(t, err)
	_, err = a.ParseAccessToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.ParseAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	a, err := NewAuthenticator(testSigningKey, "", WithTTLs(-time.Minute, -time.Minute))
	require.NoError(t, err)

	access, refresh, err := a.CreateTokens(OfflineUserID)
	require.NoError(t, err)
	_, err = a.ParseAccessToken(access)
	assert.ErrorIs(t, err, ErrExpiredToken)
	_, _, err = a.Refresh(refresh)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestOfflineUser(t *testing.T) {
	u := OfflineUser()
	assert.Equal(t, OfflineUserID, u.ID)
	assert.Equal(t, "offline@taskvibe.local", u.Email)
}
