// Package server exposes the card pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lepinkainen/smart-url-view/internal/app"
)

// maxContentBytes bounds the body accepted by the transform endpoint.
const maxContentBytes = 10 << 20

// Server holds the dependencies for the HTTP server.
type Server struct {
	app        *app.App
	gatherer   prometheus.Gatherer
	router     http.Handler
	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a server for a. gatherer backs /metrics.
func NewServer(a *app.App, gatherer prometheus.Gatherer) *Server {
	s := &Server{app: a, gatherer: gatherer}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("Starting server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
