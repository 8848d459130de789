package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		JWTSecret:     "test-secret",
		JWTExpiry:     time.Hour,
		AdminUsername: "admin",
		AdminPassword: "admin-pass",
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerSeedsAdmin(t *testing.T) {
	m := newTestManager(t)

	admin, err := m.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.Contains(t, admin.Roles, "admin")
	assert.True(t, admin.Active)
	assert.NotEmpty(t, admin.PasswordHash)
}

func TestAuthenticateValidCredentials(t *testing.T) {
	m := newTestManager(t)

	user, err := m.Authenticate("admin", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Authenticate("admin", "wrong")
	assert.Error(t, err)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Authenticate("nobody", "whatever")
	assert.Error(t, err)
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	m := newTestManager(t)

	_, err := m.CreateUser("operator", "secret", []string{"user"})
	require.NoError(t, err)

	_, err = m.CreateUser("operator", "secret", []string{"user"})
	assert.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	m := newTestManager(t)

	user, err := m.GetUserByUsername("admin")
	require.NoError(t, err)

	token, err := m.CreateJWTToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.ValidateJWTToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Contains(t, claims.Roles, "admin")
}

func TestValidateJWTTokenRejectsTampered(t *testing.T) {
	m := newTestManager(t)

	user, err := m.GetUserByUsername("admin")
	require.NoError(t, err)

	token, err := m.CreateJWTToken(user)
	require.NoError(t, err)

	_, err = m.ValidateJWTToken(token + "x")
	assert.Error(t, err)
}

func TestValidateJWTTokenRejectsOtherSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(Config{JWTSecret: "other-secret", AdminPassword: "x"})
	require.NoError(t, err)

	user, err := other.GetUserByUsername("admin")
	require.NoError(t, err)

	token, err := other.CreateJWTToken(user)
	require.NoError(t, err)

	_, err = m.ValidateJWTToken(token)
	assert.Error(t, err)
}
