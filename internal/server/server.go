// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/export"
	"github.com/Sundramrai3691/ReXcan/internal/pipeline"
	"github.com/Sundramrai3691/ReXcan/internal/repository"
)

// Server bundles the HTTP handlers over the pipeline and the stores.
type Server struct {
	processor *pipeline.Processor
	exporter  *export.Service
	records   repository.RecordRepository
	audit     repository.AuditRepository
	store     *repository.Store
	cfg       *common.Config
	logger    *slog.Logger
}

// New builds a server. store may be nil; the health endpoint then
// reports only process liveness.
func New(
	processor *pipeline.Processor,
	exporter *export.Service,
	records repository.RecordRepository,
	audit repository.AuditRepository,
	store *repository.Store,
	cfg *common.Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = common.LoadConfig()
	}
	return &Server{
		processor: processor,
		exporter:  exporter,
		records:   records,
		audit:     audit,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Router wires all routes and the CORS layer.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)
	api.HandleFunc("/records/{job_id}", s.handleGetRecord).Methods(http.MethodGet)
	api.HandleFunc("/records/{job_id}/corrections", s.handleCorrect).Methods(http.MethodPost)
	api.HandleFunc("/records/{job_id}/audit", s.handleAudit).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(r)
}

// requestID tags every request with an ID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), rid)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.HealthCheck(r.Context(), 2*time.Second); err != nil {
			s.logger.Warn("health.db_unreachable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"db":     "unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
