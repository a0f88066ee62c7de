package transport

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Role is the cluster role a join token authorizes.
type Role string

const (
	RoleWorker Role = "worker"
	RoleMaster Role = "master"
)

// JoinToken authorizes one node to join the cluster with a given role.
type JoinToken struct {
	Token     string
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TokenManager issues and validates join tokens (spec.md §4.5's "a node
// joins a cluster by presenting a join token").
type TokenManager struct {
	mu     sync.RWMutex
	tokens map[string]*JoinToken
}

// NewTokenManager constructs an empty TokenManager.
func NewTokenManager() *TokenManager {
	return &TokenManager{tokens: make(map[string]*JoinToken)}
}

// Generate issues a new random join token for role, valid for ttl.
func (tm *TokenManager) Generate(role Role, ttl time.Duration) (*JoinToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("transport: failed to generate token: %w", err)
	}

	jt := &JoinToken{
		Token:     hex.EncodeToString(raw),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	tm.mu.Lock()
	tm.tokens[jt.Token] = jt
	tm.mu.Unlock()

	return jt, nil
}

// Validate checks a presented token and returns the role it authorizes.
func (tm *TokenManager) Validate(token string) (Role, error) {
	tm.mu.RLock()
	jt, ok := tm.tokens[token]
	tm.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("transport: invalid join token")
	}
	if time.Now().After(jt.ExpiresAt) {
		return "", fmt.Errorf("transport: join token expired")
	}
	return jt.Role, nil
}

// Revoke invalidates a token immediately.
func (tm *TokenManager) Revoke(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}

// CleanupExpired removes tokens past their expiry, for periodic sweeping.
func (tm *TokenManager) CleanupExpired() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	for token, jt := range tm.tokens {
		if now.After(jt.ExpiresAt) {
			delete(tm.tokens, token)
		}
	}
}
