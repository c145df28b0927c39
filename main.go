package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campus-clubhouse/clubhouse-backend/shared/utils"
	v1 "github.com/campus-clubhouse/clubhouse-backend/v1"
	v1handlers "github.com/campus-clubhouse/clubhouse-backend/v1/handlers"
	v1middleware "github.com/campus-clubhouse/clubhouse-backend/v1/middleware"
	"github.com/campus-clubhouse/clubhouse-backend/v1/monitoring"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
)

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("Starting Clubhouse Backend initialization")

	// Initialize GORM database connection for V1
	v1DbConfig := v1.NewDatabaseConfig()
	gormDB, err := v1.ConnectGormDB(v1DbConfig)
	if err != nil {
		slog.Error("Failed to connect to GORM database", "error", err)
		os.Exit(1)
	}

	if err := store.AutoMigrate(gormDB); err != nil {
		slog.Error("Failed to migrate database schema", "error", err)
		os.Exit(1)
	}

	// Metrics are optional; a failed init logs and continues
	if err := monitoring.Initialize(monitoring.Config{
		ServiceName:    "clubhouse-backend",
		ServiceVersion: utils.GetEnvOrDefault("SERVICE_VERSION", "dev"),
	}); err != nil {
		slog.Warn("Failed to initialize metrics", "error", err)
	}

	// Setup session authentication middleware
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		slog.Error("SESSION_SECRET environment variable is required")
		os.Exit(1)
	}
	sessionConfig := v1middleware.SessionAuthConfig{
		Secret:      sessionSecret,
		OfficerCode: os.Getenv("OFFICER_ACCESS_CODE"),
		TokenTTL:    6 * time.Hour,
	}
	if err := sessionConfig.Validate(); err != nil {
		slog.Error("Invalid session configuration", "error", err)
		os.Exit(1)
	}
	sessionAuth := v1middleware.NewSessionAuthMiddleware(sessionConfig)

	// Initialize V1 handlers
	v1Handler, err := v1handlers.NewV1Handler(gormDB, sessionAuth)
	if err != nil {
		slog.Error("Failed to initialize V1 handler", "error", err)
		os.Exit(1)
	}

	// Setup authenticated API routes on their own mux
	apiMux := http.NewServeMux()
	v1Handler.SetupV1Routes(apiMux)

	corsMiddleware := v1middleware.NewCORSMiddleware()

	// Apply middleware chain (CORS -> session auth) to the API mux ONLY
	protectedAPIHandler := corsMiddleware(sessionAuth.Authenticate(apiMux))

	// Create the MAIN (top-level) mux for all incoming traffic
	topLevelMux := http.NewServeMux()

	// Public routes: login/logout and invite redemption bypass the session check
	publicMux := http.NewServeMux()
	v1Handler.SetupPublicRoutes(publicMux)
	topLevelMux.Handle("/api/v1/auth/", corsMiddleware(publicMux))
	topLevelMux.Handle("/api/v1/invites/", corsMiddleware(publicMux))

	topLevelMux.Handle("/health", utils.PanicRecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type DBHealth struct {
			Status   string `json:"status"`
			Error    string `json:"error,omitempty"`
			Database string `json:"database,omitempty"`
		}
		type HealthStatus struct {
			Status    string              `json:"status"`
			Service   string              `json:"service"`
			Databases map[string]DBHealth `json:"databases"`
		}

		status := HealthStatus{
			Status:  "healthy",
			Service: "clubhouse-backend",
			Databases: map[string]DBHealth{
				"v1": {Status: "unknown"},
			},
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if gormDB == nil {
			status.Databases["v1"] = DBHealth{Status: "unhealthy", Error: "GORM connection is nil"}
			status.Status = "unhealthy"
		} else {
			sqlDB, err := gormDB.DB()
			if err != nil {
				status.Databases["v1"] = DBHealth{Status: "unhealthy", Error: fmt.Sprintf("failed to get sql.DB: %v", err)}
				status.Status = "unhealthy"
			} else if err := sqlDB.PingContext(ctx); err != nil {
				status.Databases["v1"] = DBHealth{Status: "unhealthy", Error: err.Error()}
				status.Status = "unhealthy"
			} else {
				status.Databases["v1"] = DBHealth{Status: "healthy", Database: v1DbConfig.Database}
			}
		}

		statusCode := http.StatusOK
		if status.Status != "healthy" {
			statusCode = http.StatusServiceUnavailable
		}

		utils.RespondWithJSON(w, statusCode, status)
	})))

	topLevelMux.Handle("/metrics", monitoring.Handler())

	// Register the protected API routes to the top-level mux.
	// All remaining traffic to /api/v1/ passes through the middleware chain.
	topLevelMux.Handle("/api/v1/", protectedAPIHandler)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	addr := ":" + port
	server := &http.Server{
		Addr:         addr,
		Handler:      monitoring.HTTPMetricsMiddleware(topLevelMux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Clubhouse Backend starting", "port", port, "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start Clubhouse Backend", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down Clubhouse Backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Gracefully close database connection
	if gormDB != nil {
		if sqlDB, err := gormDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("Failed to close database connection", "error", err)
			}
		}
	}

	slog.Info("Clubhouse Backend exited")
}
