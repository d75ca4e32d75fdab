package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/metrics"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/phase"
	"github.com/taskscope/taskscope/internal/timeline"
)

// Poller returns the status snapshots of a task observed since the previous poll.
type Poller interface {
	Poll(ctx context.Context) ([]model.StatusSnapshot, error)
}

// ServiceConfig is the configuration for the watch service.
type ServiceConfig struct {
	Deriver phase.Deriver
	// PollInterval is the interval between polls.
	PollInterval time.Duration
	// TickInterval is the refresh interval of the timeline clock.
	TickInterval time.Duration
	NowFunc      func() time.Time
	Metrics      metrics.Recorder
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.PollInterval < 0 || c.TickInterval < 0 {
		return fmt.Errorf("intervals can't be negative")
	}
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Watch"})
	return nil
}

// Service follows a task until it finishes.
type Service struct {
	deriver      phase.Deriver
	pollInterval time.Duration
	tickInterval time.Duration
	nowFunc      func() time.Time
	metrics      metrics.Recorder
	logger       log.Logger
}

// NewService creates a new watch service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		deriver:      cfg.Deriver,
		pollInterval: cfg.PollInterval,
		tickInterval: cfg.TickInterval,
		nowFunc:      cfg.NowFunc,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}, nil
}

// Update is a change of the watched task.
type Update struct {
	State timeline.State
	// Display is the display of the last observed snapshot.
	Display model.Display
	// Snapshot is the last observed snapshot.
	Snapshot model.StatusSnapshot
}

// Request represents the watch request parameters.
type Request struct {
	TaskID string
	Poller Poller
	// OnUpdate receives every timeline change and clock tick. Calls are serialized.
	OnUpdate func(Update)
}

// Run polls the task status until the task reaches a terminal status or the context is
// cancelled, in which case the context error is returned together with the last update.
func (s *Service) Run(ctx context.Context, req Request) (*Update, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	if req.Poller == nil {
		return nil, fmt.Errorf("poller is required")
	}

	logger := s.logger.WithValues(log.Kv{"task-id": req.TaskID})

	var (
		mu   sync.Mutex
		last Update
	)
	emit := func(state timeline.State) {
		mu.Lock()
		defer mu.Unlock()
		last.State = state
		if req.OnUpdate != nil {
			req.OnUpdate(last)
		}
	}

	acc, err := timeline.NewAccumulator(timeline.AccumulatorConfig{
		TickInterval: s.tickInterval,
		NowFunc:      s.nowFunc,
		OnUpdate:     emit,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create accumulator: %w", err)
	}
	defer acc.Close()

	result := func() *Update {
		mu.Lock()
		defer mu.Unlock()
		res := last
		res.State = acc.State()
		return &res
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		snaps, err := req.Poller.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result(), ctx.Err()
			}
			return result(), fmt.Errorf("could not poll task status: %w", err)
		}

		for _, snap := range snaps {
			if snap.TaskID != req.TaskID {
				logger.Warningf("Ignoring snapshot of task %s", snap.TaskID)
				continue
			}

			d := s.deriver.GetDisplay(snap.Status, snap.Progress, snap.ServerPhase)
			s.metrics.PhaseObserved(d.Phase)

			mu.Lock()
			last.Display = d
			last.Snapshot = snap
			mu.Unlock()

			acc.Observe(timeline.ObservationFromSnapshot(s.deriver, snap, s.nowFunc()))
		}

		if acc.State().Terminal {
			logger.Infof("Task finished")
			return result(), nil
		}

		select {
		case <-ctx.Done():
			return result(), ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsStopped returns true when the error of Run means the watch was stopped by its context.
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
