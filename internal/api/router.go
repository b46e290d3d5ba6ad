package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/fusion/backend/internal/api/handlers"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// Handlers groups the endpoint handlers mounted by the router
type Handlers struct {
	Analysis *handlers.AnalysisHandler
	Forecast *handlers.ForecastHandler
	Stream   *handlers.StreamHandler
}

// NewRouter creates and configures the HTTP router.
// A nil registry leaves /metrics unmounted.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, registry *prometheus.Registry, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Analysis endpoints
	api.HandleFunc("/analyze", h.Analysis.StartAnalysis).Methods("POST", "OPTIONS")
	api.HandleFunc("/status", h.Analysis.GetStatus).Methods("GET")
	api.HandleFunc("/analyze_single/{ticker}", h.Analysis.AnalyzeSingle).Methods("GET")
	api.HandleFunc("/macro", h.Analysis.GetMacro).Methods("GET")

	// Forecast endpoints
	api.HandleFunc("/forecast/{ticker}", h.Forecast.GetForecast).Methods("GET")
	api.HandleFunc("/forecast/{ticker}/fan", h.Forecast.GetFanChart).Methods("GET")

	// Status stream
	r.HandleFunc("/ws/status", h.Stream.ServeStatus).Methods("GET")

	// Apply middleware
	r.Use(recoveryMiddleware(log))
	r.Use(loggingMiddleware(log))
	r.Use(corsMiddleware)

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "fusion-api",
	})
}

// statusRecorder captures the response status for logging.
// Hijack is delegated so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// 웹소켓은 Hijacker가 필요하므로 래핑하지 않음
			if r.URL.Path == "/ws/status" {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
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

// corsMiddleware allows any origin; the dashboard is served separately
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
