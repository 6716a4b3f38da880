// Package web exposes the search engine over HTTP as a small JSON API.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jward/scopegrep"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	engine *scopegrep.Engine
	root   string // default search root when the request omits ?path=
	log    *slog.Logger
}

// SearchResponse is the /api/search payload.
type SearchResponse struct {
	Query   string             `json:"query"`
	Count   int                `json:"count"`
	Reports []scopegrep.Report `json:"reports"`
}

// NewServer creates and configures the HTTP server around engine. root
// is the directory searched when a request does not name one.
func NewServer(engine *scopegrep.Engine, root string, log *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		root:   root,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/api/search", s.handleSearch)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter: q")
		return
	}

	root := r.URL.Query().Get("path")
	if root == "" {
		root = s.root
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "not a directory: "+root)
		return
	}

	reports := s.engine.SearchDirectory(r.Context(), query, root)
	if reports == nil {
		reports = []scopegrep.Report{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Count:   len(reports),
		Reports: reports,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs incoming requests.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
