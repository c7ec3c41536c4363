// Package http exposes the JSON API: signup, login and the bearer-guarded
// ledger entry operations.
package http

import (
	"context"
	"net/http"
	"sync"

	"kharcha/internal/auth"
	applog "kharcha/internal/log"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

type Server struct {
	http.Server
	authSvc  *services.AuthService
	entrySvc *services.EntryService
	tokens   *auth.TokenManager
	repo     *storage.SQLiteRepository
	logger   *applog.Logger

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Every /api/entries route goes through requireAuth; there is
// no entry route registered outside the guard.
func NewServer(addr string, authSvc *services.AuthService, entrySvc *services.EntryService, tokens *auth.TokenManager, repo *storage.SQLiteRepository) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		authSvc:     authSvc,
		entrySvc:    entrySvc,
		tokens:      tokens,
		repo:        repo,
		logger:      applog.Component(applog.ComponentHTTP),
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/signup", s.withCommon(s.withRateLimit(s.handleSignup)))
	mux.HandleFunc("POST /api/auth/login", s.withCommon(s.withRateLimit(s.handleLogin)))

	mux.HandleFunc("POST /api/entries/add", s.withCommon(s.requireAuth(s.handleAddEntry)))
	mux.HandleFunc("GET /api/entries/history", s.withCommon(s.requireAuth(s.handleHistory)))
	mux.HandleFunc("PUT /api/entries/{id}", s.withCommon(s.requireAuth(s.handleUpdateEntry)))
	mux.HandleFunc("DELETE /api/entries/{id}", s.withCommon(s.requireAuth(s.handleDeleteEntry)))

	return s
}

// Shutdown gracefully shuts down the server and the limiter's cleanup
// goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
