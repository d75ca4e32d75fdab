package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/metrics"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/sanitize"
	"github.com/taskscope/taskscope/internal/storage"
)

// ServiceConfig is the configuration for the record service.
type ServiceConfig struct {
	Repository storage.Repository
	Sanitizer  *sanitize.Sanitizer
	Metrics    metrics.Recorder
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Sanitizer == nil {
		c.Sanitizer = sanitize.Default
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Record"})
	return nil
}

// Service records task status snapshots.
type Service struct {
	repo      storage.Repository
	sanitizer *sanitize.Sanitizer
	metrics   metrics.Recorder
	logger    log.Logger
}

// NewService creates a new record service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:      cfg.Repository,
		sanitizer: cfg.Sanitizer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}, nil
}

// Request represents the record request parameters.
type Request struct {
	Snapshots []model.StatusSnapshot
}

// Run sanitizes the debug payload of every snapshot and appends them, in order, to the
// repository. It stops on the first failure, returning the snapshots recorded until then.
func (s *Service) Run(ctx context.Context, req Request) ([]model.RecordedSnapshot, error) {
	if len(req.Snapshots) == 0 {
		return nil, fmt.Errorf("at least one snapshot is required: %w", model.ErrNotValid)
	}

	recorded := make([]model.RecordedSnapshot, 0, len(req.Snapshots))
	for i, snap := range req.Snapshots {
		snap.TaskID = strings.TrimSpace(snap.TaskID)
		if snap.TaskID == "" {
			return recorded, fmt.Errorf("snapshot %d: task id is required: %w", i, model.ErrNotValid)
		}
		if snap.Status == "" {
			snap.Status = model.TaskStatusPending
		}

		if snap.Debug != nil {
			clean, report := s.sanitizer.SanitizeReport(snap.Debug)
			s.metrics.PayloadSanitized(report)
			if report.Masked > 0 {
				s.logger.Debugf("Masked %d values of the debug payload of task %s", report.Masked, snap.TaskID)
			}

			debug, ok := clean.(map[string]any)
			if !ok {
				debug = map[string]any{"value": clean}
			}
			snap.Debug = debug
		}

		rec, err := s.repo.AppendSnapshot(ctx, snap)
		if err != nil {
			return recorded, fmt.Errorf("could not record snapshot %d of task %s: %w", i, snap.TaskID, err)
		}
		s.metrics.SnapshotRecorded(snap.Status)
		recorded = append(recorded, *rec)
	}

	s.logger.Infof("Recorded %d snapshots", len(recorded))
	return recorded, nil
}
