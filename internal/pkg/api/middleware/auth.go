package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/auth"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/sessionstore"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/strava"
)

// SessionCookieName is the cookie carrying the signed session token
const SessionCookieName = "session_token"

// TokenRefresher exchanges a refresh token for fresh credentials
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.TokenResponse, error)
}

// SessionStore resolves session IDs to stored tokens
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*sessionstore.Token, error)
	Put(ctx context.Context, sessionID string, token *sessionstore.Token) error
	Delete(ctx context.Context, sessionID string) error
}

// AuthMiddleware provides authentication middleware for protected routes
type AuthMiddleware struct {
	jwtService *auth.JWTService
	sessions   SessionStore
	refresher  TokenRefresher
	logger     *logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(jwtService *auth.JWTService, sessions SessionStore, refresher TokenRefresher, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		sessions:   sessions,
		refresher:  refresher,
		logger:     log,
	}
}

// ContextKey is used for storing values in request context
type ContextKey string

const (
	// SessionIDKey is the context key for the session ID
	SessionIDKey ContextKey = "session_id"
	// AccessTokenKey is the context key for the Strava access token
	AccessTokenKey ContextKey = "access_token"
)

// RequireAuth validates the session cookie, loads the stored Strava token and
// refreshes it when it is about to expire. The fresh access token ends up in
// the request context; a failed refresh invalidates the session.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := GetClientIP(r)

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			a.logger.Warn("Authentication failed: No session token cookie",
				"path", r.URL.Path,
				"client_ip", clientIP)
			http.Error(w, "Unauthorized: No session token", http.StatusUnauthorized)
			return
		}

		sessionID, err := a.jwtService.ValidateSessionToken(cookie.Value)
		if err != nil {
			a.logger.Warn("Authentication failed: Invalid session token",
				"path", r.URL.Path,
				"client_ip", clientIP,
				"validation_error", err.Error())
			http.Error(w, "Unauthorized: Invalid session token", http.StatusUnauthorized)
			return
		}

		token, err := a.sessions.Get(r.Context(), sessionID)
		if err != nil {
			a.logger.Error("Authentication failed: Session lookup error",
				"path", r.URL.Path,
				"client_ip", clientIP,
				"session_id", sessionID,
				"error", err.Error())
			http.Error(w, "Unauthorized: Session validation error", http.StatusUnauthorized)
			return
		}

		if token == nil {
			a.logger.Warn("Authentication failed: Session not found or expired",
				"path", r.URL.Path,
				"client_ip", clientIP,
				"session_id", sessionID)
			http.Error(w, "Unauthorized: Session not found or expired", http.StatusUnauthorized)
			return
		}

		if token.Expired() {
			token, err = a.refreshSessionToken(r.Context(), sessionID, token)
			if err != nil {
				a.logger.Warn("Authentication failed: Token refresh failed",
					"path", r.URL.Path,
					"client_ip", clientIP,
					"session_id", sessionID,
					"error", err.Error())
				http.Error(w, "Unauthorized: Strava authorization expired", http.StatusUnauthorized)
				return
			}
		}

		a.logger.Debug("Authentication successful",
			"path", r.URL.Path,
			"session_id", sessionID,
			"client_ip", clientIP)

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		ctx = context.WithValue(ctx, AccessTokenKey, token.AccessToken)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// refreshSessionToken exchanges the stored refresh token for new credentials
// and writes them back to the session store. Strava may rotate the refresh
// token on every exchange, so the stored one is replaced wholesale.
func (a *AuthMiddleware) refreshSessionToken(ctx context.Context, sessionID string, stale *sessionstore.Token) (*sessionstore.Token, error) {
	refreshed, err := a.refresher.RefreshToken(ctx, stale.RefreshToken)
	if err != nil {
		if strava.IsReauthRequired(err) {
			// The grant is gone; keeping the session alive would only
			// produce 401s from Strava on every request
			if delErr := a.sessions.Delete(ctx, sessionID); delErr != nil {
				a.logger.Error("Failed to delete session after revoked grant",
					"session_id", sessionID,
					"error", delErr.Error())
			}
		}
		return nil, err
	}

	fresh := &sessionstore.Token{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		ExpiresAt:    refreshed.Expiry,
	}

	if err := a.sessions.Put(ctx, sessionID, fresh); err != nil {
		a.logger.Error("Failed to persist refreshed token",
			"session_id", sessionID,
			"error", err.Error())
		// The refreshed token is still good for this request
	}

	a.logger.Info("Refreshed Strava token for session",
		"session_id", sessionID,
		"new_expiry", fresh.ExpiresAt.String())

	return fresh, nil
}

// GetSessionIDFromContext extracts the session ID from the request context
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(string)
	return sessionID, ok
}

// GetAccessTokenFromContext extracts the Strava access token from the request context
func GetAccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(AccessTokenKey).(string)
	return token, ok
}

// CORS middleware to handle cross-origin requests
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP extracts the client IP address from the request
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For may contain a comma-separated list; the first entry
	// is the original client
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// RemoteAddr is "IP:port" or "[IPv6]:port"
	addr := r.RemoteAddr
	if addr != "" {
		if addr[0] == '[' {
			if idx := strings.Index(addr, "]:"); idx != -1 {
				return addr[1:idx]
			}
		} else {
			if idx := strings.LastIndex(addr, ":"); idx != -1 {
				return addr[:idx]
			}
		}
	}

	return addr
}
