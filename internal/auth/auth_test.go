package auth

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/adcondev/printbridge/internal/printing"
)

func newTestManager(t *testing.T, token string) *Manager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m, err := NewManager(ctx, base64.StdEncoding.EncodeToString(hash), nil)
	require.NoError(t, err)
	return m
}

func TestManager_Disabled(t *testing.T) {
	m, err := NewManager(context.Background(), "", nil)
	require.NoError(t, err)
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Check("1.2.3.4", ""))
}

func TestNewManager_BadHash(t *testing.T) {
	_, err := NewManager(context.Background(), "%%%", nil)
	assert.Error(t, err)

	_, err = NewManager(context.Background(), base64.StdEncoding.EncodeToString([]byte("plain")), nil)
	assert.Error(t, err)
}

func TestManager_Check(t *testing.T) {
	m := newTestManager(t, "s3cret")
	require.True(t, m.Enabled())

	assert.NoError(t, m.Check("a", "s3cret"))
	// Second use is served from the session cache.
	assert.NoError(t, m.Check("a", "s3cret"))

	err := m.Check("a", "wrong")
	assert.Same(t, ErrInvalidToken, err)
	assert.Equal(t, printing.CodeAccessDenied, printing.CodeOf(err))

	assert.Same(t, ErrInvalidToken, m.Check("a", ""))
}

func TestManager_Lockout(t *testing.T) {
	m := newTestManager(t, "s3cret")
	now := time.Now()
	m.now = func() time.Time { return now }

	for i := 0; i < MaxTokenFailures; i++ {
		assert.Same(t, ErrInvalidToken, m.Check("b", "nope"))
	}
	// Even the right token is refused while locked out.
	assert.Same(t, ErrLockedOut, m.Check("b", "s3cret"))
	// Other clients are unaffected.
	assert.NoError(t, m.Check("c", "s3cret"))

	now = now.Add(LockoutDuration + time.Second)
	assert.NoError(t, m.Check("b", "s3cret"))
}

func TestManager_SuccessClearsFailures(t *testing.T) {
	m := newTestManager(t, "s3cret")

	for i := 0; i < MaxTokenFailures-1; i++ {
		_ = m.Check("d", "nope")
	}
	require.NoError(t, m.Check("d", "s3cret"))
	assert.Same(t, ErrInvalidToken, m.Check("d", "nope"))
	assert.NoError(t, m.Check("d", "s3cret"))
}

func TestManager_SessionExpiryAndSweep(t *testing.T) {
	m := newTestManager(t, "s3cret")
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Check("e", "s3cret"))
	for i := 0; i < MaxTokenFailures; i++ {
		_ = m.Check("f", "nope")
	}

	now = now.Add(SessionDuration + LockoutDuration + time.Second)
	m.sweep()

	m.mu.Lock()
	assert.Empty(t, m.sessions)
	assert.Empty(t, m.failed)
	m.mu.Unlock()

	// Expired sessions fall back to bcrypt, which still accepts the token.
	assert.NoError(t, m.Check("e", "s3cret"))
}
