package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wendao/limitpulse/internal/api/handlers"
	"github.com/wendao/limitpulse/pkg/logger"
)

// NewRouter creates and configures the HTTP router. The archive handler is
// nil when no database is configured; its routes are simply not mounted.
func NewRouter(snapshotHandler *handlers.SnapshotHandler, healthHandler *handlers.HealthHandler, archiveHandler *handlers.ArchiveHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler.Liveness).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/snapshots/{dataType}/{date}", snapshotHandler.GetByDate).Methods("GET")
	api.HandleFunc("/snapshots/{dataType}/{date}/latest", snapshotHandler.GetLatest).Methods("GET")
	api.HandleFunc("/calendar/{date}", snapshotHandler.GetDayStatus).Methods("GET")
	api.HandleFunc("/sources/health", healthHandler.Sources).Methods("GET")

	if archiveHandler != nil {
		api.HandleFunc("/archive/dates", archiveHandler.ListDates).Methods("GET")
		api.HandleFunc("/archive/{direction}/{date}", archiveHandler.ListFacts).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
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
