// Package server exposes the scraper over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/prospector/internal/job"
	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/internal/version"
	"github.com/jmylchreest/prospector/pkg/prospect"
	"github.com/jmylchreest/prospector/pkg/prospector"
)

// Scraper runs and cancels scrape jobs. *prospector.Scraper satisfies it.
type Scraper interface {
	Run(ctx context.Context, q prospect.SearchQuery) (*prospect.Response, error)
	Cancel() error
}

// Config configures the HTTP listener.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// AllowOrigin is echoed as Access-Control-Allow-Origin. Empty disables
	// CORS headers.
	AllowOrigin string
}

// Server exposes a Scraper over HTTP.
type Server struct {
	scraper Scraper
	jobs    job.Store
	cfg     Config
	log     *slog.Logger
}

// New builds a Server, defaulting the address and shutdown timeout.
func New(scraper Scraper, jobs job.Store, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	return &Server{
		scraper: scraper,
		jobs:    jobs,
		cfg:     cfg,
		log:     logger.Component("server"),
	}
}

// Handler returns the routed handler with recovery and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /cancel", s.handleCancel)
	mux.HandleFunc("GET /jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.recoverer(s.cors(mux))
}

// ListenAndServe serves until ctx is done, then shuts down gracefully. A
// running scrape is cancelled first so its request can complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	if err := s.scraper.Cancel(); err != nil {
		s.log.Warn("cancel on shutdown failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleRoot answers liveness probes that only hit the root path.
//
// Method: GET
// Path:   /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Prospector API is running\n"))
}

// handleSearch runs a scrape and returns its response.
//
// Method: GET
// Path:   /search?q=...&industry=...&region=...
// Example:
//
//	curl "http://localhost:3000/search?q=marketing+agency&region=leeds"
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := prospect.SearchQuery{
		Text:     params.Get("q"),
		Industry: params.Get("industry"),
		Region:   params.Get("region"),
	}
	if strings.TrimSpace(q.Text) == "" {
		writeError(w, http.StatusBadRequest, "Missing search query")
		return
	}

	resp, err := s.scraper.Run(r.Context(), q)
	switch {
	case errors.Is(err, prospector.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "Missing search query")
	case err != nil:
		s.log.Error("search failed", "query", q.Text, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, resp, http.StatusOK)
	}
}

// handleCancel tears down the running scrape, if any.
//
// Method: POST
// Path:   /cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.scraper.Cancel(); err != nil {
		s.log.Error("cancel failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"message": "Scraping cancelled."}, http.StatusOK)
}

// handleJob returns the status record of a job.
//
// Method: GET
// Path:   /jobs/{id}
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	j, err := s.jobs.Get(r.Context(), id)
	switch {
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case err != nil:
		s.log.Error("job lookup failed", "job", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load job")
	default:
		writeJSON(w, j, http.StatusOK)
	}
}

type health struct {
	Status string       `json:"status"`
	Build  version.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, health{Status: "ok", Build: version.Get()}, http.StatusOK)
}

// recoverer turns a handler panic into a 500 JSON error.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.log.Error("handler panic", "path", r.URL.Path, "panic", rec)
			writeError(w, http.StatusInternalServerError, fmt.Sprint(rec))
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	if s.cfg.AllowOrigin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.AllowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, map[string]string{"error": msg}, status)
}
