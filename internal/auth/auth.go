// Package auth validates client tokens for mutating WebSocket operations
// and throttles clients that keep presenting bad ones.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/adcondev/printbridge/internal/printing"
)

const (
	// SessionDuration is how long an accepted token skips the bcrypt check.
	SessionDuration  = 15 * time.Minute
	MaxTokenFailures = 5
	LockoutDuration  = 5 * time.Minute
	CleanupInterval  = 5 * time.Minute
)

// Rejections. Both carry the ACCESS_DENIED code.
var (
	ErrInvalidToken = printing.NewError(printing.CodeAccessDenied, "invalid or missing token")
	ErrLockedOut    = printing.NewError(printing.CodeAccessDenied, "too many failed attempts, try again later")
)

type failInfo struct {
	count       int
	lockedUntil time.Time
}

// Manager checks tokens against a bcrypt hash.
type Manager struct {
	hash     []byte
	sessions map[[sha256.Size]byte]time.Time
	failed   map[string]failInfo
	mu       sync.Mutex
	log      *zap.Logger
	now      func() time.Time
}

// NewManager creates a manager for the base64-encoded bcrypt hash hashB64.
// An empty hash disables authentication. The cleanup goroutine stops with ctx.
func NewManager(ctx context.Context, hashB64 string, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		sessions: make(map[[sha256.Size]byte]time.Time),
		failed:   make(map[string]failInfo),
		log:      log,
		now:      time.Now,
	}
	if hashB64 != "" {
		hash, err := base64.StdEncoding.DecodeString(hashB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode token hash from base64: %w", err)
		}
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("token hash is not a bcrypt hash: %w", err)
		}
		m.hash = hash
	}
	go m.cleanupLoop(ctx)
	log.Info("auth manager initialized", zap.Bool("enabled", m.Enabled()))
	return m, nil
}

// Enabled reports whether a token hash is configured.
func (m *Manager) Enabled() bool {
	return len(m.hash) > 0
}

// Check validates token for client, usually the remote address. It
// returns nil when authentication is disabled.
func (m *Manager) Check(client, token string) error {
	if !m.Enabled() {
		return nil
	}
	if m.isLockedOut(client) {
		m.log.Warn("token rejected", zap.String("client", client), zap.String("reason", "lockout"))
		return ErrLockedOut
	}
	if token != "" && m.validSession(token) {
		return nil
	}
	if token == "" || bcrypt.CompareHashAndPassword(m.hash, []byte(token)) != nil {
		m.recordFailure(client)
		m.log.Warn("token rejected", zap.String("client", client), zap.String("reason", "mismatch"))
		return ErrInvalidToken
	}

	m.mu.Lock()
	m.sessions[sha256.Sum256([]byte(token))] = m.now().Add(SessionDuration)
	delete(m.failed, client)
	m.mu.Unlock()
	m.log.Info("token accepted", zap.String("client", client))
	return nil
}

func (m *Manager) validSession(token string) bool {
	key := sha256.Sum256([]byte(token))
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.sessions[key]
	if !ok {
		return false
	}
	if m.now().After(expiry) {
		delete(m.sessions, key)
		return false
	}
	return true
}

func (m *Manager) isLockedOut(client string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.failed[client]
	return ok && info.count >= MaxTokenFailures && m.now().Before(info.lockedUntil)
}

func (m *Manager) recordFailure(client string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.failed[client]
	info.count++
	if info.count >= MaxTokenFailures {
		info.lockedUntil = m.now().Add(LockoutDuration)
		m.log.Warn("client locked out",
			zap.String("client", client),
			zap.Duration("duration", LockoutDuration),
			zap.Int("failures", info.count))
	}
	m.failed[client] = info
}

// sweep drops expired sessions and lapsed lockouts.
func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, v := range m.sessions {
		if now.After(v) {
			delete(m.sessions, k)
		}
	}
	for k, v := range m.failed {
		if v.count >= MaxTokenFailures && now.After(v.lockedUntil) {
			delete(m.failed, k)
		}
	}
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("auth cleanup stopped")
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}
