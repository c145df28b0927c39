package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
)

// SuccessEnvelope is the standard success response wrapper
type SuccessEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorEnvelope is the standard error response wrapper
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RespondWithJSON writes an arbitrary payload as JSON with the given status code
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondWithSuccess wraps the payload in the standard success envelope
func RespondWithSuccess(w http.ResponseWriter, statusCode int, payload interface{}) {
	RespondWithJSON(w, statusCode, SuccessEnvelope{Success: true, Data: payload})
}

// RespondWithError wraps the message in the standard error envelope
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, ErrorEnvelope{Success: false, Error: message})
}

// PanicRecoveryMiddleware recovers from handler panics and returns a 500
// instead of tearing down the connection
func PanicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Recovered from panic in handler", "panic", rec, "path", r.URL.Path, "method", r.Method)
				RespondWithError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// GetEnvOrDefault returns the environment variable value or a default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
