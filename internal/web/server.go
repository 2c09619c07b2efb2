// Package web provides the HTTP API for uploading, browsing and deleting
// CSV datasets.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/csvstore/internal/config"
	"github.com/JonMunkholm/csvstore/internal/core"
	mw "github.com/JonMunkholm/csvstore/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipartOverhead is the allowance for multipart framing on top of the
// configured file size.
const multipartOverhead = 1 << 20

// Ingester stores an uploaded CSV file as a new dataset.
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader, filename string) (*core.IngestResult, error)
}

// Browser serves dataset listings, record pages and deletion.
type Browser interface {
	ListDatasets(ctx context.Context, page, limit int) (*core.DatasetPage, error)
	ListRecords(ctx context.Context, datasetID uuid.UUID, page, limit int, search string) (*core.RecordPage, error)
	DeleteDataset(ctx context.Context, datasetID uuid.UUID) error
}

// Server is the HTTP server for the dataset API.
type Server struct {
	ingester Ingester
	browser  Browser
	gatherer prometheus.Gatherer
	cfg      *config.Config
	router   *chi.Mux
	limiter  *rateLimiter
	server   *http.Server
}

// NewServer creates a Server. A nil gatherer disables the /metrics route.
func NewServer(cfg *config.Config, ingester Ingester, browser Browser, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		ingester: ingester,
		browser:  browser,
		gatherer: gatherer,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(securityHeaders)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))

	if s.cfg.Rate.Enabled && s.cfg.Rate.RequestsPerMinute > 0 {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
	}
}

// setupRoutes mounts the API behind the rate limiter. Health and metrics
// stay outside it.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	var api chi.Router = s.router
	if s.limiter != nil {
		api = s.router.With(s.limiter.middleware)
	}
	routes := func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/files", s.handleListFiles)
		r.Get("/files/{fileId}/data", s.handleFileData)
		r.Delete("/files/{fileId}", s.handleDeleteFile)
	}
	if prefix := s.cfg.Server.APIPrefix; prefix != "" {
		api.Route(prefix, routes)
	} else {
		routes(api)
	}
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown, including when Shutdown ran first.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr, "prefix", s.cfg.Server.APIPrefix)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiter's sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// retryAfter is the Retry-After value sent with 503 responses.
func (s *Server) retryAfter() string {
	secs := int(s.cfg.Upload.MaxWaitTime / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// JSON only, nothing to load.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as the response body with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
