// Package server provides the HTTP API for semindex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/config"
	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/queue"
	"github.com/hyperjump/semindex/internal/workspace"
)

// Workspace is the command surface served over HTTP. *workspace.Workspace implements it.
type Workspace interface {
	Index(ctx context.Context, nameOrAll string, force bool, progress workspace.Progress) ([]workspace.IndexReport, error)
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	Status(ctx context.Context, nameOrAll string) ([]workspace.IndexStatus, error)
	Clear(ctx context.Context, nameOrAll string) ([]string, error)
	SetEnabled(name string, enabled bool) error
	Notify(path string, kind queue.EventKind) bool
}

// Server is the HTTP server for the semindex API.
type Server struct {
	ws     Workspace
	config config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server for ws.
func NewServer(ws Workspace, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ws: ws, config: cfg, logger: logger}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/index", s.handleIndex)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Delete("/api/v1/indexes/{name}", s.handleClear)
	r.Post("/api/v1/indexes/{name}/enable", s.handleSetEnabled(true))
	r.Post("/api/v1/indexes/{name}/disable", s.handleSetEnabled(false))
	r.Post("/api/v1/notify", s.handleNotify)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
