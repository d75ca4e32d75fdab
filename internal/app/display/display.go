package display

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/metrics"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/phase"
	"github.com/taskscope/taskscope/internal/storage"
)

// ServiceConfig is the configuration for the display service.
type ServiceConfig struct {
	Repository storage.Repository
	Deriver    phase.Deriver
	Metrics    metrics.Recorder
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Display"})
	return nil
}

// Service derives the display of the latest status of a task.
type Service struct {
	repo    storage.Repository
	deriver phase.Deriver
	metrics metrics.Recorder
	logger  log.Logger
}

// NewService creates a new display service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		deriver: cfg.Deriver,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the display request parameters.
type Request struct {
	TaskID string
}

// Result is the display of a task together with the snapshot it was derived from.
type Result struct {
	Snapshot model.RecordedSnapshot
	Display  model.Display
}

// Run returns the display of the latest recorded snapshot of a task.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	snap, err := s.repo.LatestSnapshot(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("task not found: %s: %w", req.TaskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get latest snapshot: %w", err)
	}

	d := s.deriver.GetDisplay(snap.Snapshot.Status, snap.Snapshot.Progress, snap.Snapshot.ServerPhase)
	s.metrics.PhaseObserved(d.Phase)
	s.logger.Debugf("Task %s is %s (phase %s)", req.TaskID, snap.Snapshot.Status, d.Phase)

	return &Result{
		Snapshot: *snap,
		Display:  d,
	}, nil
}
