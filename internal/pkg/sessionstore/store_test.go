package sessionstore

import (
	"testing"
	"time"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/auth"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
)

func TestTokenExpired(t *testing.T) {
	t.Run("FreshToken", func(t *testing.T) {
		token := &Token{ExpiresAt: time.Now().Add(1 * time.Hour)}
		if token.Expired() {
			t.Error("Token expiring in an hour should not be considered expired")
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		token := &Token{ExpiresAt: time.Now().Add(-1 * time.Minute)}
		if !token.Expired() {
			t.Error("Token past its expiry should be considered expired")
		}
	})

	t.Run("TokenInsideRefreshBuffer", func(t *testing.T) {
		token := &Token{ExpiresAt: time.Now().Add(2 * time.Minute)}
		if !token.Expired() {
			t.Error("Token expiring within the refresh buffer should be considered expired")
		}
	})
}

func TestNewSessionID(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := NewSessionID()

		if id == "" {
			t.Error("Generated empty session ID")
		}

		if ids[id] {
			t.Errorf("Duplicate session ID generated: %s", id)
		}

		ids[id] = true

		if len(id) != 36 {
			t.Errorf("Invalid session ID format: %s (length %d)", id, len(id))
		}
	}
}

func TestSessionKey(t *testing.T) {
	if got := sessionKey("abc"); got != "session:abc" {
		t.Errorf("sessionKey(abc) = %q, want %q", got, "session:abc")
	}
}

func TestNewStore_InvalidURL(t *testing.T) {
	log := logger.New("test")

	store, err := NewStore("invalid-url", auth.NewTokenCipher("test-secret"), log)
	if err == nil {
		t.Error("Expected error for invalid Redis URL")
	}
	if store != nil {
		t.Error("Expected nil store for invalid URL")
	}
}
