// Package sessionstore keeps per-session Strava credentials in Redis. The
// browser only ever holds an opaque session ID; access and refresh tokens
// stay server side and expire with the session.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/auth"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
)

const (
	sessionKeyPrefix = "session:"

	// SessionTTL bounds how long an idle session survives. Writes reset it.
	SessionTTL = 30 * 24 * time.Hour
)

// Token holds the Strava credentials bound to one browser session
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token needs a refresh before use.
// A 5-minute buffer avoids racing the expiry during an in-flight request.
func (t *Token) Expired() bool {
	return !time.Now().Add(5 * time.Minute).Before(t.ExpiresAt)
}

// Store provides Redis-backed session token storage. Tokens are encrypted
// before they leave the process.
type Store struct {
	redis  *redis.Client
	cipher *auth.TokenCipher
	logger *logger.Logger
}

// NewStore creates a session store connected to the given Redis URL
func NewStore(redisURL string, cipher *auth.TokenCipher, log *logger.Logger) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 3
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		redis:  client,
		cipher: cipher,
		logger: log.WithContext("component", "session_store"),
	}, nil
}

// NewSessionID generates an opaque session identifier
func NewSessionID() string {
	return uuid.New().String()
}

// Put stores the token for a session, resetting its TTL
func (s *Store) Put(ctx context.Context, sessionID string, token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		s.logger.Error("Failed to marshal session token",
			"error", err,
			"session_id", sessionID)
		return fmt.Errorf("failed to marshal session token: %w", err)
	}

	sealed, err := s.cipher.Encrypt(data)
	if err != nil {
		s.logger.Error("Failed to encrypt session token",
			"error", err,
			"session_id", sessionID)
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}

	if err := s.redis.Set(ctx, sessionKey(sessionID), sealed, SessionTTL).Err(); err != nil {
		s.logger.Error("Failed to store session token in Redis",
			"error", err,
			"session_id", sessionID)
		return fmt.Errorf("failed to store session token: %w", err)
	}

	s.logger.Debug("Stored session token",
		"session_id", sessionID,
		"token_expiry", token.ExpiresAt)

	return nil
}

// Get retrieves the token for a session.
// Returns nil without error when the session does not exist or has expired.
func (s *Store) Get(ctx context.Context, sessionID string) (*Token, error) {
	sealed, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		s.logger.Error("Failed to read session token from Redis",
			"error", err,
			"session_id", sessionID)
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}

	data, err := s.cipher.Decrypt(sealed)
	if err != nil {
		s.logger.Error("Failed to decrypt session token",
			"error", err,
			"session_id", sessionID)
		return nil, fmt.Errorf("failed to decrypt session token: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		s.logger.Error("Failed to unmarshal session token",
			"error", err,
			"session_id", sessionID)
		return nil, fmt.Errorf("failed to unmarshal session token: %w", err)
	}

	return &token, nil
}

// Delete removes a session (logout)
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		s.logger.Error("Failed to delete session from Redis",
			"error", err,
			"session_id", sessionID)
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.logger.Debug("Deleted session", "session_id", sessionID)
	return nil
}

// HealthCheck verifies Redis connectivity
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		s.logger.Error("Redis health check failed", "error", err)
		return fmt.Errorf("Redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
