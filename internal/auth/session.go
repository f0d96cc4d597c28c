package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store persists live session ids until they expire or are revoked.
type Store interface {
	Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (userID string, ok bool, err error)
	Delete(ctx context.Context, sessionID string) error
}

// Session is an issued sign-in.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sessions combines signed tokens with a revocable session store.
type Sessions struct {
	tokens *TokenIssuer
	store  Store
}

// NewSessions creates a Sessions manager.
func NewSessions(tokens *TokenIssuer, store Store) *Sessions {
	return &Sessions{tokens: tokens, store: store}
}

// Create signs in userID.
func (s *Sessions) Create(ctx context.Context, userID string) (*Session, error) {
	token, claims, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	expires := claims.ExpiresAt.Time
	if err := s.store.Save(ctx, claims.ID, userID, time.Until(expires)); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &Session{Token: token, UserID: userID, ExpiresAt: expires}, nil
}

// Validate returns the user id of a live session.
func (s *Sessions) Validate(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	userID, ok, err := s.store.Lookup(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	if !ok || userID != claims.UserID {
		return "", ErrSessionRevoked
	}
	return userID, nil
}

// Revoke signs out the session behind token. Revoking an unknown or
// expired session succeeds.
func (s *Sessions) Revoke(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	if err := s.store.Delete(ctx, claims.ID); err != nil {
		return "", fmt.Errorf("failed to delete session: %w", err)
	}
	return claims.UserID, nil
}

// RedisStore keeps sessions in Redis with a TTL per key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "rewardhub:session:"}
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+sessionID, userID, ttl).Err()
}

// Lookup implements Store.
func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (string, bool, error) {
	userID, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}

type memorySession struct {
	userID  string
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between instances.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memorySession), now: time.Now}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, sessionID, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = memorySession{userID: userID, expires: s.now().Add(ttl)}
	return nil
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(sess.expires) {
		delete(s.sessions, sessionID)
		return "", false, nil
	}
	return sess.userID, true, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Prune drops expired sessions and returns how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.expires) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
