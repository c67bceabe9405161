package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotFound is returned for tokens with no live session: never issued,
// expired, or signed out.
var ErrNotFound = errors.New("session not found")

const keyPrefix = "session:"

// Session is one server-side login session.
type Session struct {
	Token      string    `json:"token"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeen   time.Time `json:"last_seen"`
}

// Store persists sessions in Redis under a sliding idle TTL.
type Store struct {
	client      *redis.Client
	idleTimeout time.Duration
	maxLifetime time.Duration

	now func() time.Time
}

// NewStore creates a session store. idleTimeout is the sliding window a
// session stays alive without activity; maxLifetime is the hard cap from
// creation after which no amount of activity keeps it alive.
func NewStore(client *redis.Client, idleTimeout, maxLifetime time.Duration) *Store {
	return &Store{
		client:      client,
		idleTimeout: idleTimeout,
		maxLifetime: maxLifetime,
		now:         time.Now,
	}
}

// IdleTimeout returns the configured sliding window.
func (s *Store) IdleTimeout() time.Duration {
	return s.idleTimeout
}

// Create issues a new session for an identity and stores it with the
// idle TTL armed.
func (s *Store) Create(ctx context.Context, identityID, email string) (*Session, error) {
	now := s.now().UTC()
	sess := &Session{
		Token:      uuid.New().String(),
		IdentityID: identityID,
		Email:      email,
		CreatedAt:  now,
		LastSeen:   now,
	}

	if err := s.write(ctx, sess, s.idleTimeout); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Get fetches a session without refreshing its TTL.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, keyPrefix+token).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// Corrupt entry, drop it rather than serve it.
		s.client.Del(ctx, keyPrefix+token)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Touch records activity on a session: LastSeen moves forward and the
// idle TTL restarts, clamped so the session never outlives its hard cap.
// A session already past the cap is deleted and reported as missing.
func (s *Store) Touch(ctx context.Context, token string) (*Session, error) {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	remaining := sess.CreatedAt.Add(s.maxLifetime).Sub(now)
	if remaining <= 0 {
		s.client.Del(ctx, keyPrefix+token)
		return nil, ErrNotFound
	}

	ttl := s.idleTimeout
	if remaining < ttl {
		ttl = remaining
	}

	sess.LastSeen = now
	if err := s.write(ctx, sess, ttl); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	return sess, nil
}

// Delete removes a session. Deleting an already-gone session is not an
// error: sign-out must be idempotent.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+sess.Token, data, ttl).Err()
}
