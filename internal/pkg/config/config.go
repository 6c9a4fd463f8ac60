// Package config provides a hybrid configuration loading mechanism that supports
// both local development (.env files) and production environments (Google Secret Manager).
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
)

// Config represents the application configuration with all required settings.
type Config struct {
	// Environment settings
	Environment string `json:"environment"`
	Port        string `json:"port"`
	BaseURL     string `json:"base_url"`
	FrontendURL string `json:"frontend_url"`
	LogLevel    string `json:"log_level"`

	// Database configuration
	DatabaseURL      string `json:"database_url"`
	PostgresDB       string `json:"postgres_db"`
	PostgresUser     string `json:"postgres_user"`
	PostgresPassword string `json:"postgres_password"`
	PostgresHost     string `json:"postgres_host"`
	PostgresPort     string `json:"postgres_port"`

	// Redis configuration
	RedisURL  string `json:"redis_url"`
	RedisHost string `json:"redis_host"`
	RedisPort string `json:"redis_port"`

	// Strava OAuth credentials
	StravaClientID     string `json:"strava_client_id"`
	StravaClientSecret string `json:"strava_client_secret"`
	StravaRedirectURL  string `json:"strava_redirect_url"`

	// Google service account
	GoogleCredentialsFile string `json:"google_credentials_file"`

	// Default spreadsheet target, used to seed the database on first start.
	// Either the name or the ID may be set; an ID wins when both are.
	DefaultSpreadsheetName string `json:"default_spreadsheet_name"`
	DefaultSpreadsheetID   string `json:"default_spreadsheet_id"`
	DefaultWorksheet       string `json:"default_worksheet"`

	// Session security
	JWTSecret        string `json:"jwt_secret"`
	EncryptionSecret string `json:"encryption_secret"`

	// GCP configuration
	GCPProjectID string `json:"gcp_project_id"`

	// Fail-fast configuration
	FailFastEnabled bool `json:"fail_fast_enabled"`
}

// Load loads configuration based on the environment.
// In local environments (APP_ENV=local), it loads from .env file.
// In production environments, it loads from Google Secret Manager.
func Load() (*Config, error) {
	env := getEnv("APP_ENV", getEnv("GO_ENV", "local"))

	switch env {
	case "local", "development", "dev":
		return loadFromEnv()
	case "production", "prod", "staging":
		return loadFromSecretManager()
	default:
		return loadFromEnv()
	}
}

// loadFromEnv loads configuration from environment variables and .env file.
func loadFromEnv() (*Config, error) {
	// The .env file is optional
	_ = godotenv.Load()

	config := configFromEnv()

	config.applyDerivedValues()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// configFromEnv builds a Config purely from environment variables
func configFromEnv() *Config {
	return &Config{
		Environment: getEnv("APP_ENV", getEnv("GO_ENV", "local")),
		Port:        getEnv("PORT", "8080"),
		BaseURL:     getEnv("BASE_URL", ""),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "strava_sheets_sync"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),

		RedisURL:  getEnv("REDIS_URL", ""),
		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		StravaClientID:     getEnv("STRAVA_CLIENT_ID", ""),
		StravaClientSecret: getEnv("STRAVA_CLIENT_SECRET", ""),
		StravaRedirectURL:  getEnv("STRAVA_REDIRECT_URL", ""),

		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),

		DefaultSpreadsheetName: getEnv("DEFAULT_SPREADSHEET_NAME", ""),
		DefaultSpreadsheetID:   getEnv("DEFAULT_SPREADSHEET_ID", ""),
		DefaultWorksheet:       getEnv("DEFAULT_WORKSHEET", "Sheet1"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),

		GCPProjectID: getEnv("GCP_PROJECT_ID", ""),

		FailFastEnabled: getEnvBool("FAIL_FAST_ENABLED", false),
	}
}

// loadFromSecretManager loads configuration from Google Secret Manager.
func loadFromSecretManager() (*Config, error) {
	ctx := context.Background()

	projectID := getEnv("GCP_PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID environment variable is required for Secret Manager")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		// Graceful degradation in environments without Secret Manager access
		fmt.Printf("Warning: Could not create Secret Manager client (%v), falling back to environment variables\n", err)
		return loadFromEnvOnly()
	}
	defer client.Close()

	fmt.Printf("Info: Loading configuration from Google Secret Manager for project: %s\n", projectID)

	secrets := map[string]*string{
		"database-url":         new(string),
		"redis-url":            new(string),
		"strava-client-id":     new(string),
		"strava-client-secret": new(string),
		"jwt-secret":           new(string),
		"encryption-secret":    new(string),
		"database-password":    new(string),
	}

	secretsLoaded := 0
	for secretName, value := range secrets {
		secretValue, err := getSecret(ctx, client, projectID, secretName)
		if err != nil {
			fmt.Printf("Warning: failed to get secret %s: %v\n", secretName, err)
			continue
		}
		*value = secretValue
		secretsLoaded++
	}

	fmt.Printf("Info: Successfully loaded %d secrets from Secret Manager\n", secretsLoaded)

	config := configFromEnv()
	config.Environment = getEnv("APP_ENV", "production")
	config.GCPProjectID = projectID

	// Secrets win over environment values
	config.DatabaseURL = getValueOrEnv(secrets["database-url"], "DATABASE_URL", "")
	config.RedisURL = getValueOrEnv(secrets["redis-url"], "REDIS_URL", "")
	config.StravaClientID = getValueOrEnv(secrets["strava-client-id"], "STRAVA_CLIENT_ID", "")
	config.StravaClientSecret = getValueOrEnv(secrets["strava-client-secret"], "STRAVA_CLIENT_SECRET", "")
	config.JWTSecret = getValueOrEnv(secrets["jwt-secret"], "JWT_SECRET", "")
	config.EncryptionSecret = getValueOrEnv(secrets["encryption-secret"], "ENCRYPTION_SECRET", "")
	if password := getValueOrEnv(secrets["database-password"], "POSTGRES_PASSWORD", ""); password != "" {
		config.PostgresPassword = password
	}

	config.applyDerivedValues()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromEnvOnly is the production fallback when Secret Manager is unreachable
func loadFromEnvOnly() (*Config, error) {
	config := configFromEnv()
	config.Environment = getEnv("APP_ENV", "production")

	config.applyDerivedValues()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getSecret retrieves a secret from Google Secret Manager.
func getSecret(ctx context.Context, client *secretmanager.Client, projectID, secretName string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretName),
	}

	result, err := client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", secretName, err)
	}

	return string(result.Payload.Data), nil
}

// applyDerivedValues fills in values that can be computed from others
func (c *Config) applyDerivedValues() {
	if c.DatabaseURL == "" && c.PostgresHost != "" {
		c.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			c.PostgresUser,
			c.PostgresPassword,
			c.PostgresHost,
			c.PostgresPort,
			c.PostgresDB,
		)
	}

	if c.RedisURL == "" && c.RedisHost != "" {
		c.RedisURL = fmt.Sprintf("redis://%s:%s", c.RedisHost, c.RedisPort)
	}

	if c.BaseURL == "" && c.isDevelopment() {
		c.BaseURL = fmt.Sprintf("http://localhost:%s", c.Port)
	}

	if c.FrontendURL == "" && c.isDevelopment() {
		c.FrontendURL = "http://localhost:3000"
	}

	if c.StravaRedirectURL == "" && c.BaseURL != "" {
		c.StravaRedirectURL = c.BaseURL + "/api/auth/strava/callback"
	}
}

func (c *Config) isDevelopment() bool {
	return c.Environment == "local" || c.Environment == "development" || c.Environment == "dev"
}

// validate performs basic validation on the configuration.
func (c *Config) validate() error {
	var errors []string

	if c.Environment == "" {
		errors = append(errors, "environment is required")
	}

	if c.Port == "" {
		errors = append(errors, "port is required")
	}

	if !c.isDevelopment() {
		if c.JWTSecret == "" {
			errors = append(errors, "JWT_SECRET is required in production")
		}
		if c.EncryptionSecret == "" {
			errors = append(errors, "ENCRYPTION_SECRET is required in production")
		}
		if c.BaseURL == "" {
			errors = append(errors, "BASE_URL is required in production environments")
		}
	}

	if c.EncryptionSecret != "" && len(c.EncryptionSecret) < 32 {
		errors = append(errors, "ENCRYPTION_SECRET should be at least 32 characters for security")
	}

	if c.Port != "" {
		if _, err := strconv.Atoi(c.Port); err != nil {
			errors = append(errors, "port must be a valid number")
		}
	}

	if c.LogLevel != "" {
		validLevels := map[string]struct{}{
			"DEBUG": {}, "INFO": {}, "WARN": {}, "WARNING": {},
			"ERROR": {}, "CRITICAL": {},
		}
		if _, ok := validLevels[strings.ToUpper(c.LogLevel)]; !ok {
			errors = append(errors, "log_level must be one of DEBUG, INFO, WARN, WARNING, ERROR, CRITICAL")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, ", "))
	}

	return nil
}

// getEnv gets an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a fallback default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getValueOrEnv returns the secret value if available, otherwise falls back to environment variable.
func getValueOrEnv(secretValue *string, envKey, defaultValue string) string {
	if secretValue != nil && *secretValue != "" {
		return *secretValue
	}
	return getEnv(envKey, defaultValue)
}
