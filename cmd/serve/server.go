package main

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"regexp"
	"strconv"
	"time"

	jinja "github.com/AlexanderGrooff/jinja-lite"
	"github.com/AlexanderGrooff/jinja-lite/internal/config"
	"github.com/AlexanderGrooff/jinja-lite/internal/contextfile"
	"github.com/AlexanderGrooff/jinja-lite/internal/store"
)

var placeholderPattern = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)>`)

// Server renders configured routes through a store.Loader.
type Server struct {
	cfg    *config.Config
	loader *store.Loader
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer registers every configured route and the static directory.
func NewServer(cfg *config.Config, loader *store.Loader, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		loader: loader,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	for _, route := range cfg.Routes {
		pattern, params := muxPattern(route.Path)
		s.mux.Handle("GET "+pattern, s.handleRoute(route, params))
		logger.Debug("Route registered", "path", route.Path, "template", route.Template, "pattern", pattern)
	}
	if cfg.StaticDir != "" {
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	}
	return s, nil
}

// ServeHTTP implements http.Handler with request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("Request served",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
		"remote_addr", r.RemoteAddr)
}

// muxPattern turns /hello/<name> into the ServeMux pattern /hello/{name}
// and returns the placeholder names. The root path matches only itself.
func muxPattern(path string) (string, []string) {
	if path == "/" {
		return "/{$}", nil
	}
	var params []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(path, -1) {
		params = append(params, m[1])
	}
	return placeholderPattern.ReplaceAllString(path, "{$1}"), params
}

func (s *Server) handleRoute(route config.Route, params []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := make(map[string]any, len(params)+2)
		if route.Context != "" {
			ctx, err := contextfile.Load(route.Context)
			if err != nil {
				s.logger.Error("Failed to load route context", "path", route.Path, "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			maps.Copy(data, ctx)
		}
		for _, p := range params {
			data[p] = r.PathValue(p)
		}
		data["request"] = map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  r.URL.RawQuery,
		}

		out, err := s.loader.Render(r.Context(), route.Template, data)
		if err != nil {
			s.renderError(w, r, route, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(out)))
		_, _ = io.WriteString(w, out)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, route config.Route, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Warn("Template not found", "template", route.Template, "error", err)
		http.NotFound(w, r)
	case errors.Is(err, jinja.ErrSyntax), errors.Is(err, jinja.ErrLookup), errors.Is(err, jinja.ErrRender):
		s.logger.Error("Failed to render template", "template", route.Template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	default:
		s.logger.Error("Failed to load template", "template", route.Template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
