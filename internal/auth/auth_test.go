package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	ok, err := CheckPassword(hash, "hunter22")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "hunter23")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "hunter22")
	assert.Error(t, err)
}

func TestNewTokenIssuer_RejectsWeakConfig(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenIssuer(testSecret, 0)
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	token, claims, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.UserID)
	assert.Equal(t, claims.ID, parsed.ID)
}

func TestTokenParse_Rejects(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	token, _, err := issuer.Issue("user-1")
	require.NoError(t, err)

	other, err := NewTokenIssuer(strings.Repeat("x", 32), time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessions_Lifecycle(t *testing.T) {
	ctx := context.Background()
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	sessions := NewSessions(issuer, NewMemoryStore())

	sess, err := sessions.Create(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	userID, err := sessions.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	revoked, err := sessions.Revoke(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", revoked)

	_, err = sessions.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	_, err = sessions.Revoke(ctx, sess.Token)
	assert.NoError(t, err)
}

func TestSessions_IndependentPerSignIn(t *testing.T) {
	ctx := context.Background()
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	sessions := NewSessions(issuer, NewMemoryStore())

	a, err := sessions.Create(ctx, "user-1")
	require.NoError(t, err)
	b, err := sessions.Create(ctx, "user-1")
	require.NoError(t, err)

	_, err = sessions.Revoke(ctx, a.Token)
	require.NoError(t, err)

	_, err = sessions.Validate(ctx, b.Token)
	assert.NoError(t, err)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "s1", "u1", time.Minute))
	require.NoError(t, store.Save(ctx, "s2", "u2", time.Hour))

	userID, ok, err := store.Lookup(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Lookup(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, store.Prune())
}
