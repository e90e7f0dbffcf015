package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Server exposes the read-only HTTP surface over a Diagnostics
// registry: /, /status, /health, /events, /watchers,
// /config, /metrics. Every path but /config accepts an optional bearer
// token; /config is always unauthenticated since it carries no secrets
// beyond what an operator already has filesystem access to.
type Server struct {
	diag        *Diagnostics
	bearerToken string
	configView  func() any

	httpServer *http.Server
}

// NewServer creates a Server. bearerToken may be empty, disabling auth
// entirely. configView returns the current effective configuration view
// served (unauthenticated) at /config; it may be nil if nothing should
// be served there.
func NewServer(diag *Diagnostics, bearerToken string, configView func() any) *Server {
	return &Server{diag: diag, bearerToken: bearerToken, configView: configView}
}

// Start binds addr and begins serving in a background goroutine. Use
// Shutdown to stop it.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.withAuth(s.handleStatus))
	mux.HandleFunc("/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/health", s.withAuth(s.handleHealth))
	mux.HandleFunc("/events", s.withAuth(s.handleEvents))
	mux.HandleFunc("/watchers", s.withAuth(s.handleWatchers))
	mux.HandleFunc("/config", s.handleConfig) // always unauthenticated
	mux.HandleFunc("/metrics", s.withAuth(s.handleMetrics))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-time.After(50 * time.Millisecond):
	}

	return nil
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// withAuth enforces the bearer token (when configured) and the GET-only
// method restriction, and handles CORS preflight (OPTIONS) requests.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
			return
		}
		if s.bearerToken != "" && !bearerMatches(r, s.bearerToken) {
			writeError(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		next(w, r)
	}
}

func bearerMatches(r *http.Request, token string) bool {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	return strings.HasPrefix(h, prefix) && strings.TrimPrefix(h, prefix) == token
}

var diagnosticsEndpoints = []string{"/", "/status", "/health", "/events", "/watchers", "/config", "/metrics"}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/status" {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":     ErrNotFound.Error(),
			"endpoints": diagnosticsEndpoints,
		})
		return
	}
	writeJSON(w, http.StatusOK, s.diag.GetStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.diag.GetStatus().RecentEvents)
}

func (s *Server) handleWatchers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.diag.GetStatus().ActiveWatchers)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.diag.FormatMetrics()))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
		return
	}
	if s.configView == nil {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, s.configView())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}
