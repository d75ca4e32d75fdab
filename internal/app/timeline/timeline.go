package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/phase"
	"github.com/taskscope/taskscope/internal/storage"
	"github.com/taskscope/taskscope/internal/timeline"
)

// ServiceConfig is the configuration for the timeline service.
type ServiceConfig struct {
	Repository storage.Repository
	Deriver    phase.Deriver
	NowFunc    func() time.Time
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Timeline"})
	return nil
}

// Service rebuilds the phase timeline of a task from its recorded snapshots.
type Service struct {
	repo    storage.Repository
	deriver phase.Deriver
	nowFunc func() time.Time
	logger  log.Logger
}

// NewService creates a new timeline service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		deriver: cfg.Deriver,
		nowFunc: cfg.NowFunc,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the timeline request parameters.
type Request struct {
	TaskID string
	// Limit is the number of most recent entries returned. Zero uses the default and
	// negative values return every entry.
	Limit int
}

// Result is the replayed timeline of a task.
type Result struct {
	State timeline.State
	// Entries are the most recent entries of the timeline.
	Entries []model.TimelineEntry
}

// Run replays every recorded snapshot of a task through a timeline accumulator.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	snaps, err := s.repo.ListSnapshots(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not list snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("task not found: %s: %w", req.TaskID, model.ErrNotFound)
	}

	acc, err := timeline.NewAccumulator(timeline.AccumulatorConfig{
		NowFunc: s.nowFunc,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create accumulator: %w", err)
	}
	defer acc.Close()

	for _, snap := range snaps {
		acc.Observe(timeline.ObservationFromSnapshot(s.deriver, snap.Snapshot, snap.RecordedAt))
	}
	state := acc.State()
	s.logger.Debugf("Replayed %d snapshots of task %s into %d timeline entries", len(snaps), req.TaskID, len(state.Timeline))

	limit := req.Limit
	if limit == 0 {
		limit = timeline.DefaultRecentEntries
	}

	return &Result{
		State:   state,
		Entries: state.Recent(limit),
	}, nil
}
