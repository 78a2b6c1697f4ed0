package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/log"
)

// Server represents the API server
type Server struct {
	httpServer *http.Server
}

// NewServer creates a new API server for e listening on bindAddr.
func NewServer(e *engine.Engine, bindAddr string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              bindAddr,
			Handler:           NewRouter(e),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// No write timeout: an apply lasts as long as its verification.
			IdleTimeout: 60 * time.Second,
		},
	}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Infof("[API] Starting server on %s", s.httpServer.Addr)
	log.Infof("[API] Example: curl http://%s/api/v1/state", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	log.Infof("[API] Shutting down server...")
	return s.httpServer.Shutdown(ctx)
}
