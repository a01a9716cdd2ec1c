// Package httpapi exposes the scan workflow as a multipart upload endpoint.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/interfaces/services"
)

// Scanner runs one uploaded archive through the scan pipeline
type Scanner interface {
	Run(ctx context.Context, req entities.ScanRequest) (*entities.ScanOutcome, error)
}

// ServerConfig contains configuration for the HTTP server
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	Scanner        Scanner
	Toolchains     []services.ToolchainInfo
	Logger         interfaces.Logger
}

// Server is the upload service
type Server struct {
	httpServer *http.Server
	logger     interfaces.Logger
}

// NewServer creates a server with its routes mounted
func NewServer(config ServerConfig) *Server {
	logger := interfaces.OrNoOp(config.Logger)
	handler := NewRouter(config)

	return &Server{
		httpServer: &http.Server{
			Addr:              config.Addr,
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the chi router for the upload service
func NewRouter(config ServerConfig) http.Handler {
	logger := interfaces.OrNoOp(config.Logger)
	h := &handlers{
		scanner:        config.Scanner,
		maxUploadBytes: config.MaxUploadBytes,
		toolchains:     config.Toolchains,
		logger:         logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Get("/toolchains", h.listToolchains)
	r.Post("/scan", h.scan)

	return r
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("upload service listening", interfaces.F("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for running scans to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("upload service shutting down")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request through the domain logger
func requestLogger(logger interfaces.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request handled",
				interfaces.F("request_id", middleware.GetReqID(r.Context())),
				interfaces.F("method", r.Method),
				interfaces.F("path", r.URL.Path),
				interfaces.F("status", ww.Status()),
				interfaces.F("duration", time.Since(start).String()),
			)
		})
	}
}
