package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/prodigy-ranking/backend/internal/api/handlers"
	"github.com/prodigy-ranking/backend/internal/api/middleware"
	"github.com/prodigy-ranking/backend/internal/api/stream"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are registered here only
func NewRouter(ranking *handlers.RankingHandler, hub *stream.Hub, limiter *middleware.RateLimiter, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(limiter.Middleware)

	api.HandleFunc("/runs/latest", ranking.GetLatestRun).Methods("GET")
	api.HandleFunc("/players/{id}", ranking.GetPlayer).Methods("GET")
	api.HandleFunc("/leaderboard", ranking.GetLeaderboard).Methods("GET")
	api.HandleFunc("/teams", ranking.GetTeams).Methods("GET")
	api.HandleFunc("/playoff", ranking.GetPlayoff).Methods("GET")

	// Push notifications
	api.Handle("/stream", hub).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "prodigy-ranking-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
