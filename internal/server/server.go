// Package server exposes plan rendering over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/metrics"
	"github.com/mickamy/pgdot/internal/render/dot"
	"github.com/mickamy/pgdot/internal/render/image"
	"github.com/mickamy/pgdot/internal/store"
)

// DefaultMaxBodyBytes caps request bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 10 << 20

// Options configures a Server.
type Options struct {
	// Store archives renders; nil disables the /api/renders endpoints.
	Store *store.Store
	// Metrics backs /metrics; nil disables the endpoint and records nothing.
	Metrics      *metrics.PrometheusCollector
	Logger       zerolog.Logger
	MaxBodyBytes int64
	GraphID      string
	Strict       bool
}

// Server holds handler dependencies.
type Server struct {
	store     *store.Store
	collector metrics.Collector
	prom      *metrics.PrometheusCollector
	logger    zerolog.Logger
	maxBody   int64
	graphID   string
	strict    bool
	renderSVG func(ctx context.Context, w io.Writer, g *graph.Graph, opts dot.Options) error
}

// New creates a Server from opts.
func New(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		collector: metrics.NewNoOpCollector(),
		prom:      opts.Metrics,
		logger:    opts.Logger,
		maxBody:   opts.MaxBodyBytes,
		graphID:   opts.GraphID,
		strict:    opts.Strict,
		renderSVG: func(ctx context.Context, w io.Writer, g *graph.Graph, opts dot.Options) error {
			return image.Render(ctx, w, g, opts, image.SVG)
		},
	}
	if opts.Metrics != nil {
		s.collector = opts.Metrics
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	if s.graphID == "" {
		s.graphID = dot.DefaultGraphID
	}
	return s
}

// Handler returns the router with recovery, request logging and all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.prom != nil {
		r.Method(http.MethodGet, "/metrics", s.prom.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/render", s.handleRender)
		r.Get("/renders", s.handleListRenders)
		r.Get("/renders/{id}", s.handleGetRender)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// observe logs each request and counts it by route pattern and status code.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.collector.IncrementCounter("http_requests_total", "route", route, "code", strconv.Itoa(status))

		event := s.logger.Info()
		if status >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
