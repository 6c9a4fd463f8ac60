package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
)

const (
	apiBaseURL = "https://www.strava.com/api/v3"
	authURL    = "https://www.strava.com/oauth/authorize"
	tokenURL   = "https://www.strava.com/oauth/token"

	// Scope required to read all activities, including those marked private
	oauthScope = "activity:read_all"
)

// Activity represents a raw Strava activity record as returned by the API.
// StartDate is kept as the raw timestamp string so that formatting failures
// surface where the value is interpreted, not during JSON decoding.
type Activity struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	SportType        string   `json:"sport_type"`
	Distance         float64  `json:"distance"`    // meters
	MovingTime       int      `json:"moving_time"` // seconds
	ElapsedTime      int      `json:"elapsed_time"`
	StartDate        string   `json:"start_date"` // UTC, e.g. 2024-03-05T07:12:00Z
	AverageHeartrate *float64 `json:"average_heartrate"`
}

// ListActivitiesParams narrows the activity listing window. Nil time bounds
// are omitted from the request; zero Page/PerPage fall back to API defaults.
type ListActivitiesParams struct {
	Before  *time.Time
	After   *time.Time
	Page    int
	PerPage int
}

// TokenResponse holds the credentials returned by Strava's OAuth token endpoint
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Client provides application-level Strava API access. A single client is
// shared across all sessions; the caller supplies the per-user access token
// on each API call.
type Client struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	baseURL     string
	logger      *logger.Logger
}

// NewClient creates a Strava API client using the application's OAuth credentials
func NewClient(clientID, clientSecret, redirectURL string, log *logger.Logger) *Client {
	oauthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{oauthScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}

	return &Client{
		oauthConfig: oauthConfig,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     apiBaseURL,
		logger:      log.WithContext("component", "strava_client"),
	}
}

// AuthorizationURL builds the Strava OAuth consent URL for the given state value
func (c *Client) AuthorizationURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// ExchangeCode trades an authorization code for an access/refresh token pair
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	startTime := time.Now()
	c.logger.Debug("Exchanging authorization code with Strava OAuth endpoint",
		"endpoint", c.oauthConfig.Endpoint.TokenURL)

	token, err := c.oauthConfig.Exchange(ctx, code)
	if err != nil {
		c.logger.Error("Failed to exchange authorization code for Strava tokens",
			"error", err,
			"request_duration_ms", time.Since(startTime).Milliseconds())
		return nil, &AuthError{
			Type:    "CODE_EXCHANGE_FAILED",
			Message: "Failed to exchange authorization code for Strava tokens",
			Cause:   err,
		}
	}

	c.logger.Info("Successfully exchanged authorization code for Strava tokens",
		"token_expiry", token.Expiry,
		"request_duration_ms", time.Since(startTime).Milliseconds())

	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// RefreshToken obtains a fresh access token using a stored refresh token.
// Strava rotates refresh tokens, so callers must persist the returned pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		c.logger.Error("No refresh token available for Strava token refresh")
		return nil, ErrReauthRequired
	}

	startTime := time.Now()
	c.logger.Debug("Making token refresh request to Strava OAuth endpoint",
		"endpoint", c.oauthConfig.Endpoint.TokenURL)

	tokenSource := c.oauthConfig.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	})
	newToken, err := tokenSource.Token()

	requestDuration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Failed to refresh Strava access token via OAuth endpoint",
			"error", err,
			"request_duration_ms", requestDuration.Milliseconds(),
			"endpoint", c.oauthConfig.Endpoint.TokenURL)

		if IsReauthRequired(err) {
			c.logger.Warn("Strava refresh token is invalid, user re-authorization required",
				"error", err)
			return nil, &AuthError{
				Type:    "REAUTH_REQUIRED",
				Message: "Strava refresh token is invalid, user must re-authorize",
				Cause:   err,
			}
		}

		return nil, &NetworkError{
			Operation: "token_refresh",
			Message:   "Failed to refresh Strava access token",
			Cause:     err,
		}
	}

	c.logger.Info("Successfully refreshed Strava access token",
		"new_token_expiry", newToken.Expiry,
		"token_valid_hours", time.Until(newToken.Expiry).Hours(),
		"refresh_duration_ms", requestDuration.Milliseconds())

	result := &TokenResponse{
		AccessToken:  newToken.AccessToken,
		RefreshToken: newToken.RefreshToken,
		Expiry:       newToken.Expiry,
	}
	if result.RefreshToken == "" {
		// Strava normally rotates refresh tokens on every refresh; keep the
		// old one if the response omits it
		result.RefreshToken = refreshToken
	}
	return result, nil
}

// ListActivities retrieves the authenticated athlete's activities, most recent
// first, filtered and paged according to params
func (c *Client) ListActivities(ctx context.Context, accessToken string, params ListActivitiesParams) ([]Activity, error) {
	query := url.Values{}
	if params.Before != nil {
		query.Set("before", strconv.FormatInt(params.Before.Unix(), 10))
	}
	if params.After != nil {
		query.Set("after", strconv.FormatInt(params.After.Unix(), 10))
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(params.PerPage))
	}

	endpoint := "/athlete/activities"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	c.logger.Debug("Retrieving activities from Strava",
		"endpoint", endpoint,
		"page", params.Page,
		"per_page", params.PerPage)

	var activities []Activity
	if err := c.makeAPIRequest(ctx, http.MethodGet, endpoint, accessToken, &activities); err != nil {
		c.logger.Error("Failed to retrieve activities from Strava",
			"error", err,
			"endpoint", endpoint)
		return nil, err
	}

	c.logger.Info("Successfully retrieved activities from Strava",
		"activity_count", len(activities))

	return activities, nil
}

// GetAthleteProfile retrieves the authenticated athlete's profile information
func (c *Client) GetAthleteProfile(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	var profile map[string]interface{}
	if err := c.makeAPIRequest(ctx, http.MethodGet, "/athlete", accessToken, &profile); err != nil {
		c.logger.Error("Failed to retrieve athlete profile from Strava", "error", err)
		return nil, err
	}

	athleteID := "unknown"
	if id, ok := profile["id"]; ok {
		athleteID = fmt.Sprintf("%v", id)
	}

	c.logger.Info("Successfully retrieved athlete profile from Strava",
		"athlete_id", athleteID,
		"profile_fields", len(profile))

	return profile, nil
}

// makeAPIRequest performs an authenticated HTTP request to the Strava API
func (c *Client) makeAPIRequest(ctx context.Context, method, endpoint, accessToken string, result interface{}) error {
	fullURL := c.baseURL + endpoint

	startTime := time.Now()
	c.logger.Debug("Making Strava API request",
		"method", method,
		"endpoint", endpoint,
		"full_url", fullURL)

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		c.logger.Error("Failed to create Strava API request",
			"error", err,
			"method", method,
			"endpoint", endpoint)
		return &NetworkError{
			Operation: "request_creation",
			Message:   "Failed to create HTTP request",
			Cause:     err,
		}
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TrackSync/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Strava API request failed with network error",
			"error", err,
			"method", method,
			"endpoint", endpoint,
			"request_duration_ms", time.Since(startTime).Milliseconds())
		return &NetworkError{
			Operation: "api_request",
			Message:   "Network error during API request",
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	requestDuration := time.Since(startTime)

	c.logger.Debug("Received response from Strava API",
		"method", method,
		"endpoint", endpoint,
		"status_code", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"request_duration_ms", requestDuration.Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errorDetails map[string]interface{}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errorDetails); decodeErr == nil {
			c.logger.Error("Strava API returned error response",
				"status_code", resp.StatusCode,
				"error_details", errorDetails,
				"method", method,
				"endpoint", endpoint,
				"request_duration_ms", requestDuration.Milliseconds())
		} else {
			c.logger.Error("Strava API returned error response",
				"status_code", resp.StatusCode,
				"method", method,
				"endpoint", endpoint,
				"request_duration_ms", requestDuration.Milliseconds())
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			c.logger.Warn("Strava API returned 401 Unauthorized, access token may be invalid",
				"endpoint", endpoint)
			return &AuthError{
				Type:    "ACCESS_DENIED",
				Message: "Strava API access denied, token may be invalid",
			}
		case http.StatusForbidden:
			return &AuthError{
				Type:    "FORBIDDEN",
				Message: "Strava API access forbidden, insufficient permissions",
			}
		case http.StatusTooManyRequests:
			return &APIError{
				StatusCode: resp.StatusCode,
				Type:       "RATE_LIMITED",
				Message:    "Strava API rate limit exceeded",
			}
		default:
			return &APIError{
				StatusCode: resp.StatusCode,
				Type:       "HTTP_ERROR",
				Message:    fmt.Sprintf("Strava API error: %s", resp.Status),
			}
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		c.logger.Error("Failed to decode Strava API response",
			"error", err,
			"method", method,
			"endpoint", endpoint,
			"status_code", resp.StatusCode)
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       "DECODE_ERROR",
			Message:    "Failed to decode API response",
			Cause:      err,
		}
	}

	return nil
}
