package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/orchestrator"
)

// Server is the REST + SSE surface over a running orchestrator.Service.
type Server struct {
	svc    *orchestrator.Service
	logger *slog.Logger

	searchLimiter  *keyedLimiter
	previewLimiter *keyedLimiter
	refreshLimiter *globalLimiter
	botSearchLimit *keyedLimiter

	httpServer *http.Server
}

// New builds a Server with the rate limits named in the external
// interfaces table: 30/min search, 60/min preview, 1 per 60s global
// refresh, 10/min per-chat bot search.
func New(svc *orchestrator.Service, logger *slog.Logger, addr string) *Server {
	s := &Server{
		svc:            svc,
		logger:         logger,
		searchLimiter:  newKeyedLimiter(30),
		previewLimiter: newKeyedLimiter(60),
		refreshLimiter: newGlobalLimiter(60 * time.Second),
		botSearchLimit: newKeyedLimiter(10),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /attach", s.handleAttach)
	mux.HandleFunc("POST /detach", s.handleDetach)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /sessions/{id}/preview", s.handlePreview)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /projects", s.handleProjects)
	mux.HandleFunc("POST /index/refresh", s.handleRefresh)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// clientKey derives the rate-limit bucket key for a request: the first
// X-Forwarded-For hop if present, else RemoteAddr.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}
