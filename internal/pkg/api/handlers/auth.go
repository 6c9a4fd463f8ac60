package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/api/middleware"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/auth"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/sessionstore"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/strava"
)

const stateCookieName = "oauth_state"

// OAuthProvider is the Strava OAuth surface the auth handler needs
type OAuthProvider interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*strava.TokenResponse, error)
}

// AuthHandler handles the Strava OAuth login flow and session lifecycle
type AuthHandler struct {
	oauth         OAuthProvider
	sessions      middleware.SessionStore
	jwtService    *auth.JWTService
	frontendURL   string
	isDevelopment bool
	logger        *logger.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(
	oauth OAuthProvider,
	sessions middleware.SessionStore,
	jwtService *auth.JWTService,
	frontendURL string,
	isDevelopment bool,
	log *logger.Logger,
) *AuthHandler {
	return &AuthHandler{
		oauth:         oauth,
		sessions:      sessions,
		jwtService:    jwtService,
		frontendURL:   frontendURL,
		isDevelopment: isDevelopment,
		logger:        log.WithContext("component", "auth_handler"),
	}
}

// cookieConfig returns cookie settings for the current environment.
// SameSite=Lax keeps cookies on top-level OAuth redirects.
func (h *AuthHandler) cookieConfig() (sameSite http.SameSite, secure bool) {
	if h.isDevelopment {
		return http.SameSiteLaxMode, false
	}
	return http.SameSiteLaxMode, true
}

// Login handles GET /api/auth/strava/login. It issues a CSRF state, pins it
// in a short-lived cookie and returns the Strava authorization URL.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.GetClientIP(r)

	state := uuid.New().String()
	sameSite, secure := h.cookieConfig()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   600,
	})

	authURL := h.oauth.AuthorizationURL(state)

	h.logger.Info("Issued Strava authorization URL",
		"client_ip", clientIP)

	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"auth_url": authURL,
	})
}

// Callback handles GET /api/auth/strava/callback. A successful code exchange
// creates a Redis-backed session holding the Strava tokens and sets the
// signed session cookie before redirecting back to the frontend.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.GetClientIP(r)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("User denied Strava authorization",
			"error", errParam,
			"client_ip", clientIP)
		http.Redirect(w, r, h.frontendURL+"/?auth=denied", http.StatusTemporaryRedirect)
		return
	}

	stateParam := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateParam == "" || stateCookie.Value != stateParam {
		h.logger.Warn("OAuth callback state mismatch",
			"client_ip", clientIP,
			"has_state_param", stateParam != "",
			"has_state_cookie", err == nil)
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_STATE", "OAuth state validation failed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("OAuth callback missing authorization code",
			"client_ip", clientIP)
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_CODE", "Missing authorization code")
		return
	}

	tokens, err := h.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("Failed to exchange authorization code",
			"error", err,
			"client_ip", clientIP)
		writeError(w, h.logger, http.StatusBadGateway, "EXCHANGE_FAILED", "Failed to exchange authorization code with Strava")
		return
	}

	sessionID := sessionstore.NewSessionID()
	if err := h.sessions.Put(r.Context(), sessionID, &sessionstore.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.Expiry,
	}); err != nil {
		h.logger.Error("Failed to create session",
			"error", err,
			"client_ip", clientIP)
		writeError(w, h.logger, http.StatusInternalServerError, "SESSION_ERROR", "Failed to create session")
		return
	}

	sessionToken, err := h.jwtService.GenerateSessionToken(sessionID)
	if err != nil {
		h.logger.Error("Failed to sign session token",
			"error", err,
			"session_id", sessionID)
		writeError(w, h.logger, http.StatusInternalServerError, "SESSION_ERROR", "Failed to create session")
		return
	}

	sameSite, secure := h.cookieConfig()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   int(auth.SessionTokenLifetime / time.Second),
	})

	// The state cookie has served its purpose
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	h.logger.Info("Strava login completed",
		"session_id", sessionID,
		"client_ip", clientIP,
		"token_expiry", tokens.Expiry.String())

	http.Redirect(w, r, h.frontendURL+"/", http.StatusTemporaryRedirect)
}

// Logout handles POST /api/auth/logout. It deletes the stored session and
// clears the cookie; an already-invalid cookie still gets cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.GetClientIP(r)

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if sessionID, err := h.jwtService.ValidateSessionToken(cookie.Value); err == nil {
			if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
				h.logger.Error("Failed to delete session on logout",
					"session_id", sessionID,
					"error", err)
			} else {
				h.logger.Info("Session terminated",
					"session_id", sessionID,
					"client_ip", clientIP)
			}
		}
	}

	sameSite, secure := h.cookieConfig()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   -1,
	})

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Status handles GET /api/auth/status. It reports whether the caller holds a
// live session without requiring one.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	authenticated := false

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if sessionID, err := h.jwtService.ValidateSessionToken(cookie.Value); err == nil {
			token, err := h.sessions.Get(r.Context(), sessionID)
			authenticated = err == nil && token != nil
		}
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]bool{
		"authenticated": authenticated,
	})
}
