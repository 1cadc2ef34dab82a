package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/pipeforge/pkg/archive"
	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/library"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// DefaultAddr is used when NewServer is given an empty address.
const DefaultAddr = "127.0.0.1:8095"

// maxRequestBody caps JSON request bodies; component text is carried inline.
const maxRequestBody = 8 << 20

// Interfaces for dependencies to enable mocking

type HydratorInterface interface {
	Hydrate(ctx context.Context, ref componentspec.ComponentReference) *componentref.Hydrated
}

type LibraryLoaderInterface interface {
	Load(ctx context.Context, url string) (*library.Report, error)
}

type ExporterInterface interface {
	Export(ctx context.Context) (*archive.Result, error)
}

// Server encapsulates the HTTP API server
type Server struct {
	store     store.ComponentStore
	hydrator  HydratorInterface
	libraries LibraryLoaderInterface
	exporter  ExporterInterface
	logger    *slog.Logger
	version   string

	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server instance. The library and export
// endpoints answer 503 until SetLibraryLoader and SetExporter are called.
func NewServer(st store.ComponentStore, hydrator HydratorInterface, addr string) *Server {
	s := &Server{
		store:    st,
		hydrator: hydrator,
		logger:   slog.Default(),
		version:  "dev",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/hydrate", withMetrics("hydrate", s.handleHydrate))
	mux.HandleFunc("/v1/duplicate", withMetrics("duplicate", s.handleDuplicate))
	mux.HandleFunc("/v1/components", withMetrics("components", s.handleComponents))
	mux.HandleFunc("/v1/components/", withMetrics("component", s.handleComponent))
	mux.HandleFunc("/v1/libraries", withMetrics("libraries", s.handleLibraries))
	mux.HandleFunc("/v1/admin/export", withMetrics("export", s.handleExport))

	// Middleware: Logging, Panic Recovery, Security Headers
	s.handler = s.withLogging(s.withRecovery(withSecureHeaders(mux)))

	if addr == "" {
		addr = DefaultAddr
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// SetLibraryLoader enables POST /v1/libraries.
func (s *Server) SetLibraryLoader(l LibraryLoaderInterface) {
	s.libraries = l
}

// SetExporter enables POST /v1/admin/export.
func (s *Server) SetExporter(e ExporterInterface) {
	s.exporter = e
}

// SetLogger replaces the request logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetVersion sets the version reported by /v1/health.
func (s *Server) SetVersion(v string) {
	s.version = v
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	s.logger.Info("server_starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}

// handleHealth returns simple status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.FromContext(r.Context()).Error("failed_to_encode_response", "error", err.Error())
	}
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				ctxlog.FromContext(r.Context()).Error("panic_recovered", "error", err, "path", r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging. The request logger carries the trace id and
// travels on the context, so hydration logs can be correlated with requests.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		logger := s.logger.With("trace_id", traceID)
		r = r.WithContext(ctxlog.WithLogger(r.Context(), logger))

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
