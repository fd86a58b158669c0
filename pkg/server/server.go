// Package server exposes a template engine over HTTP for previewing
// templates together with the cache headers their metadata produces.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-renderbridge/pkg/activetheme"
	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/datetime"
	"github.com/goliatone/go-renderbridge/pkg/template"
)

// maxInlineBody bounds POST /render payloads.
const maxInlineBody = 1 << 20

// DataSource supplies the template data for a named template request.
type DataSource func(r *http.Request, name string) (any, error)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithDataSource replaces the default data source, which exposes the query
// string as a flat map.
func WithDataSource(source DataSource) Option {
	return func(s *Server) {
		if source != nil {
			s.data = source
		}
	}
}

// Server is the preview HTTP handler.
type Server struct {
	renderer template.TemplateRenderer
	logger   *slog.Logger
	metrics  http.Handler
	data     DataSource
	router   chi.Router
}

// New builds the preview server around renderer.
func New(renderer template.TemplateRenderer, opts ...Option) (*Server, error) {
	if renderer == nil {
		return nil, errors.New("server: renderer is required")
	}
	s := &Server{
		renderer: renderer,
		logger:   slog.Default(),
		data:     queryData,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(themeFromQuery)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Get("/timezones", s.timezones)
	r.Get("/render/*", s.renderNamed)
	r.Post("/render", s.renderInline)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) renderNamed(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(chi.URLParam(r, "*"), "/")
	if name == "" {
		http.Error(w, "template name required", http.StatusBadRequest)
		return
	}
	data, err := s.data(r, name)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	result, err := s.renderer.RenderTemplate(r.Context(), name, data)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	s.write(w, result)
}

type inlineRequest struct {
	Source string         `json:"source"`
	Data   map[string]any `json:"data"`
}

func (s *Server) renderInline(w http.ResponseWriter, r *http.Request) {
	var req inlineRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxInlineBody))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("server: decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		http.Error(w, "source required", http.StatusBadRequest)
		return
	}
	result, err := s.renderer.RenderString(r.Context(), req.Source, req.Data)
	if err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	s.write(w, result)
}

const (
	defaultZoneLimit = 50
	maxZoneLimit     = 200
)

// timezones lists zones matching ?q= for format_date's timezone argument.
func (s *Server) timezones(w http.ResponseWriter, r *http.Request) {
	limit := defaultZoneLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxZoneLimit)
	}
	zones, err := datetime.Zones()
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	matches := datetime.SearchZones(zones, r.URL.Query().Get("q"), limit)
	if matches == nil {
		matches = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"data": matches})
}

func (s *Server) write(w http.ResponseWriter, result template.Result) {
	cache.WriteHeaders(w.Header(), result.Metadata)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, string(result.Markup))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Error("server: render failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
	http.Error(w, err.Error(), status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// themeFromQuery lets ?theme= and ?variant= pick the active theme.
func themeFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := r.URL.Query().Get("theme"); name != "" {
			ctx := activetheme.WithTheme(r.Context(), name, r.URL.Query().Get("variant"))
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// queryData exposes query parameters other than theme selection. Repeated
// parameters become lists.
func queryData(r *http.Request, _ string) (any, error) {
	data := make(map[string]any)
	for key, values := range r.URL.Query() {
		if key == "theme" || key == "variant" {
			continue
		}
		if len(values) == 1 {
			data[key] = values[0]
			continue
		}
		data[key] = values
	}
	return data, nil
}
