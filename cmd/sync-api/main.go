package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/api/handlers"
	authMiddleware "github.com/tracksync/strava-sheets-sync/internal/pkg/api/middleware"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/auth"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/config"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/database"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/google"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/health"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/retry"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/sessionstore"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/strava"
	syncsvc "github.com/tracksync/strava-sheets-sync/internal/pkg/sync"
)

// performStartupHealthChecks validates critical dependencies before the
// server starts accepting traffic
func performStartupHealthChecks(cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting dependency health checks")

	healthChecker := health.NewHealthChecker(log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DatabaseURL == "" {
		log.Critical("Critical dependency validation failed: DATABASE_URL not configured")
		return fmt.Errorf("DATABASE_URL is required but not configured")
	}

	err := retry.WithExponentialBackoff(ctx, retry.CriticalConfig(), log, "database_health_check", func() error {
		result := healthChecker.CheckDatabaseConnection(ctx, cfg.DatabaseURL)
		if !result.IsHealthy() {
			return fmt.Errorf("database health check failed: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		log.Critical("Critical dependency failed: Database connection unavailable after retries",
			"error", err.Error())
		return fmt.Errorf("database dependency check failed: %w", err)
	}

	log.Info("All critical dependency health checks passed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Fallback logging before the structured logger is available
		fmt.Printf("ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("sync-api")

	log.Info("Sync API starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"log_level", cfg.LogLevel)
	log.Info("Configuration status",
		"database_configured", cfg.DatabaseURL != "",
		"redis_configured", cfg.RedisURL != "",
		"strava_oauth_configured", cfg.StravaClientID != "" && cfg.StravaClientSecret != "",
		"google_credentials_file", cfg.GoogleCredentialsFile)

	if cfg.FailFastEnabled {
		if err := performStartupHealthChecks(cfg, log); err != nil {
			log.Critical("Startup dependency health checks failed - application cannot continue",
				"error", err.Error())
			os.Exit(2)
		}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Critical("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Critical("Failed to ping database", "error", err)
		os.Exit(1)
	}
	log.Info("Database connection established successfully")

	if err := database.Migrate(db, log); err != nil {
		log.Critical("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	spreadsheetRepository := database.NewSpreadsheetRepository(db)
	mappingRepository := database.NewMappingRepository(db)

	// Seed a default spreadsheet from the environment so a fresh deploy can
	// run /api/sync/today without touching the CRUD API first
	if err := spreadsheetRepository.SeedDefault(context.Background(), cfg.DefaultSpreadsheetName, cfg.DefaultSpreadsheetID); err != nil {
		log.Error("Failed to seed default spreadsheet configuration", "error", err)
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenCipher := auth.NewTokenCipher(cfg.EncryptionSecret)

	sessionStore, err := sessionstore.NewStore(cfg.RedisURL, tokenCipher, log)
	if err != nil {
		log.Critical("Failed to connect to Redis session store", "error", err)
		os.Exit(1)
	}
	defer sessionStore.Close()

	stravaClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret, cfg.StravaRedirectURL, log)

	sheetsClient, err := google.NewSheetsClient(context.Background(), cfg.GoogleCredentialsFile, log)
	if err != nil {
		log.Critical("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	importService := syncsvc.NewImportService(stravaClient, sheetsClient, mappingRepository, spreadsheetRepository, log)
	spreadsheetService := syncsvc.NewSpreadsheetService(spreadsheetRepository, mappingRepository, sheetsClient, log)

	authMW := authMiddleware.NewAuthMiddleware(jwtService, sessionStore, stravaClient, log.WithContext("component", "auth_middleware"))

	isDevelopment := cfg.Environment == "local" || cfg.Environment == "development" || cfg.Environment == "dev"

	authHandler := handlers.NewAuthHandler(
		stravaClient,
		sessionStore,
		jwtService,
		cfg.FrontendURL,
		isDevelopment,
		log,
	)
	importHandler := handlers.NewImportHandler(importService, spreadsheetService, log)
	spreadsheetHandler := handlers.NewSpreadsheetHandler(spreadsheetService, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(authMiddleware.CORS(cfg.FrontendURL))

	healthChecker := health.NewHealthChecker(log)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status := map[string]any{
			"status":      "healthy",
			"environment": cfg.Environment,
			"service":     "sync-api",
			"timestamp":   time.Now().Format(time.RFC3339),
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		degraded := []string{}
		if result := healthChecker.CheckDatabase(ctx, db); !result.IsHealthy() {
			status["database_status"] = "unhealthy"
			degraded = append(degraded, "database")
		} else {
			status["database_status"] = "healthy"
		}
		if result := healthChecker.CheckPinger(ctx, "redis", sessionStore); !result.IsHealthy() {
			status["session_store_status"] = "unhealthy"
			degraded = append(degraded, "sessions")
		} else {
			status["session_store_status"] = "healthy"
		}

		statusCode := http.StatusOK
		if len(degraded) > 0 {
			status["status"] = "degraded"
			status["degraded_services"] = degraded
			statusCode = http.StatusServiceUnavailable
		}

		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error("Failed to encode health response", "error", err)
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	// Authentication routes (public)
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/strava/login", authHandler.Login)
		r.Get("/strava/callback", authHandler.Callback)
		r.Get("/status", authHandler.Status)
		r.Post("/logout", authHandler.Logout)
	})

	// Protected API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(authMW.RequireAuth)

		r.Post("/activities/preview", importHandler.Preview)
		r.Post("/import", importHandler.Confirm)
		r.Post("/sync/today", importHandler.SyncToday)

		r.Route("/spreadsheets", func(r chi.Router) {
			r.Get("/", spreadsheetHandler.List)
			r.Post("/", spreadsheetHandler.Create)
			r.Get("/{id}", spreadsheetHandler.Get)
			r.Put("/{id}", spreadsheetHandler.Update)
			r.Delete("/{id}", spreadsheetHandler.Delete)
			r.Post("/{id}/default", spreadsheetHandler.SetDefault)
			r.Get("/{id}/worksheets", spreadsheetHandler.Worksheets)
			r.Get("/{id}/headers", spreadsheetHandler.Headers)
			r.Get("/{id}/mapping", spreadsheetHandler.Mapping)
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Sync API server starting",
			"port", cfg.Port,
			"base_url", cfg.BaseURL,
			"strava_redirect_url", cfg.StravaRedirectURL)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Critical("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}

	log.Info("Sync API stopped")
}
