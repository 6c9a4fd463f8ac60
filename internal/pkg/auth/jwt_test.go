package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateSessionToken(t *testing.T) {
	service := NewJWTService("test-secret-key")
	sessionID := "d3b07384-d9a0-4c9c-8f3a-2f6c7a1b5e42"

	tokenString, err := service.GenerateSessionToken(sessionID)
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}
	if tokenString == "" {
		t.Fatal("Generated empty token")
	}

	got, err := service.ValidateSessionToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateSessionToken failed: %v", err)
	}
	if got != sessionID {
		t.Errorf("Expected session ID %q, got %q", sessionID, got)
	}
}

func TestValidateSessionToken_WrongSecret(t *testing.T) {
	service := NewJWTService("test-secret-key")
	other := NewJWTService("different-secret-key")

	tokenString, err := service.GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}

	if _, err := other.ValidateSessionToken(tokenString); err == nil {
		t.Error("Expected validation to fail with wrong secret")
	}
}

func TestValidateSessionToken_Tampered(t *testing.T) {
	service := NewJWTService("test-secret-key")

	tokenString, err := service.GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		t.Fatalf("Unexpected token format: %d parts", len(parts))
	}
	tampered := parts[0] + ".eyJzZXNzaW9uX2lkIjoiZXZpbCJ9." + parts[2]

	if _, err := service.ValidateSessionToken(tampered); err == nil {
		t.Error("Expected validation to fail for tampered token")
	}
}

func TestValidateSessionToken_Garbage(t *testing.T) {
	service := NewJWTService("test-secret-key")

	if _, err := service.ValidateSessionToken("not-a-jwt"); err == nil {
		t.Error("Expected validation to fail for malformed token")
	}
}

func TestValidateSessionToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret-key")

	claims := SessionClaims{
		SessionID: "session-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "strava-sheets-sync",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("Failed to sign expired token: %v", err)
	}

	if _, err := service.ValidateSessionToken(tokenString); err == nil {
		t.Error("Expected validation to fail for expired token")
	}
}

func TestValidateSessionToken_EmptySessionID(t *testing.T) {
	service := NewJWTService("test-secret-key")

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := service.ValidateSessionToken(tokenString); err == nil {
		t.Error("Expected validation to fail for token without session ID")
	}
}
