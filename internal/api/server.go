package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskscope/taskscope/internal/app/display"
	"github.com/taskscope/taskscope/internal/app/record"
	appsanitize "github.com/taskscope/taskscope/internal/app/sanitize"
	apptimeline "github.com/taskscope/taskscope/internal/app/timeline"
	"github.com/taskscope/taskscope/internal/app/watch"
	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/metrics"
	"github.com/taskscope/taskscope/internal/phase"
	"github.com/taskscope/taskscope/internal/sanitize"
	"github.com/taskscope/taskscope/internal/storage"
)

// ServerConfig is the configuration of the HTTP API server.
type ServerConfig struct {
	Addr       string
	AuthToken  string
	Repository storage.Repository
	Deriver    phase.Deriver
	Sanitizer  *sanitize.Sanitizer
	Metrics    metrics.Recorder
	// MetricsHandler serves the metrics endpoint, nil disables it.
	MetricsHandler http.Handler
	// PollInterval is the interval used by timeline streams to poll new snapshots.
	PollInterval time.Duration
	Logger       log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8080"
	}
	if c.Sanitizer == nil {
		c.Sanitizer = sanitize.Default
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Server"})
	return nil
}

// Server is the taskscope HTTP API.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	repo       storage.Repository
	deriver    phase.Deriver
	record     *record.Service
	display    *display.Service
	timeline   *apptimeline.Service
	sanitize   *appsanitize.Service
	watch      *watch.Service
	metrics    metrics.Recorder
	authToken  string
	logger     log.Logger
}

// NewServer constructs the HTTP API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	recordSvc, err := record.NewService(record.ServiceConfig{
		Repository: cfg.Repository,
		Sanitizer:  cfg.Sanitizer,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create record service: %w", err)
	}

	displaySvc, err := display.NewService(display.ServiceConfig{
		Repository: cfg.Repository,
		Deriver:    cfg.Deriver,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create display service: %w", err)
	}

	timelineSvc, err := apptimeline.NewService(apptimeline.ServiceConfig{
		Repository: cfg.Repository,
		Deriver:    cfg.Deriver,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create timeline service: %w", err)
	}

	sanitizeSvc, err := appsanitize.NewService(appsanitize.ServiceConfig{
		Sanitizer: cfg.Sanitizer,
		Metrics:   cfg.Metrics,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create sanitize service: %w", err)
	}

	watchSvc, err := watch.NewService(watch.ServiceConfig{
		Deriver:      cfg.Deriver,
		PollInterval: cfg.PollInterval,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create watch service: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		repo:      cfg.Repository,
		deriver:   cfg.Deriver,
		record:    recordSvc,
		display:   displaySvc,
		timeline:  timelineSvc,
		sanitize:  sanitizeSvc,
		watch:     watchSvc,
		metrics:   cfg.Metrics,
		authToken: cfg.AuthToken,
		logger:    cfg.Logger,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware(cfg.Metrics))
	s.registerRoutes(cfg.MetricsHandler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves HTTP requests until the server is shut down.
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(metricsHandler http.Handler) {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler)
	}

	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Post("/debug/sanitize", s.handleSanitize)
		r.Get("/provider-url", s.handleProviderURL)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)

			r.Route("/{taskID}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteTask)
				r.Post("/snapshots", s.handleRecordSnapshot)
				r.Get("/display", s.handleDisplay)
				r.Get("/timeline", s.handleTimeline)
				r.Get("/timeline/ws", s.handleTimelineStream)
			})
		})
	})
}
