// Package api exposes the inbound HTTP surface: the alert webhook plus the
// state inspection endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

// Analyzer runs the analysis pipeline for one alert.
type Analyzer interface {
	Analyze(ctx context.Context, alert *models.Alert) (*models.Verdict, error)
}

// StateReader is the read-only slice of the engine API the inspection
// endpoints need.
type StateReader interface {
	GetState() *models.EngineState
	GetClosedPositions() []models.Position
}

// Config holds the server settings.
type Config struct {
	Port int
	// WebhookSecret, when non-empty, must match the alert body's secret.
	WebhookSecret string
}

// Server is the inbound HTTP server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	analyzer Analyzer
	state    StateReader
	cfg      Config
	logger   *logrus.Logger
}

// NewServer creates the HTTP server and mounts all routes.
func NewServer(cfg Config, analyzer Analyzer, state StateReader, logger *logrus.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		analyzer: analyzer,
		state:    state,
		cfg:      cfg,
		logger:   logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Post("/webhook", s.handleWebhook)
	s.router.Get("/state", s.handleState)
	s.router.Get("/history", s.handleHistory)
	s.router.Get("/health", s.handleHealth)
}

// Handler returns the root handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("starting server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
