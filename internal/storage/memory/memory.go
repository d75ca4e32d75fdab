package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger  log.Logger
	NowFunc func() time.Time
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	snapshots map[string][]model.RecordedSnapshot
	mu        sync.RWMutex
	logger    log.Logger
	nowFunc   func() time.Time
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		snapshots: make(map[string][]model.RecordedSnapshot),
		logger:    cfg.Logger,
		nowFunc:   cfg.NowFunc,
	}, nil
}

// AppendSnapshot records a new snapshot of a task.
func (r *Repository) AppendSnapshot(ctx context.Context, s model.StatusSnapshot) (*model.RecordedSnapshot, error) {
	if strings.TrimSpace(s.TaskID) == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := model.RecordedSnapshot{
		ID:         ulid.Make().String(),
		RecordedAt: r.nowFunc().UTC(),
		Snapshot:   copySnapshot(s),
	}
	r.snapshots[s.TaskID] = append(r.snapshots[s.TaskID], rec)
	r.logger.Debugf("Recorded snapshot %s of task %s", rec.ID, s.TaskID)

	res := copyRecorded(rec)
	return &res, nil
}

// ListSnapshots returns all the recorded snapshots of a task.
func (r *Repository) ListSnapshots(ctx context.Context, taskID string) ([]model.RecordedSnapshot, error) {
	return r.ListSnapshotsAfter(ctx, taskID, "")
}

// ListSnapshotsAfter returns the snapshots of a task recorded after afterID.
func (r *Repository) ListSnapshotsAfter(ctx context.Context, taskID, afterID string) ([]model.RecordedSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.RecordedSnapshot
	for _, s := range r.snapshots[taskID] {
		if s.ID > afterID {
			res = append(res, copyRecorded(s))
		}
	}

	return res, nil
}

// LatestSnapshot returns the last recorded snapshot of a task.
func (r *Repository) LatestSnapshot(ctx context.Context, taskID string) (*model.RecordedSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := r.snapshots[taskID]
	if len(snaps) == 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	res := copyRecorded(snaps[len(snaps)-1])
	return &res, nil
}

// ListTasks returns a summary of every task with recorded snapshots, most recent first.
func (r *Repository) ListTasks(ctx context.Context) ([]model.TaskSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.TaskSummary, 0, len(r.snapshots))
	for id, snaps := range r.snapshots {
		first, last := snaps[0], snaps[len(snaps)-1]
		tasks = append(tasks, model.TaskSummary{
			TaskID:         id,
			LastStatus:     last.Snapshot.Status,
			SnapshotCount:  len(snaps),
			FirstRecorded:  first.RecordedAt,
			LastRecordedAt: last.RecordedAt,
		})
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].LastRecordedAt.Equal(tasks[j].LastRecordedAt) {
			return tasks[i].LastRecordedAt.After(tasks[j].LastRecordedAt)
		}
		return tasks[i].TaskID < tasks[j].TaskID
	})

	return tasks, nil
}

// DeleteTask removes all the snapshots of a task.
func (r *Repository) DeleteTask(ctx context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[taskID]; !ok {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	delete(r.snapshots, taskID)
	r.logger.Debugf("Deleted snapshots of task %s", taskID)
	return nil
}

func copyRecorded(r model.RecordedSnapshot) model.RecordedSnapshot {
	r.Snapshot = copySnapshot(r.Snapshot)
	return r
}

func copySnapshot(s model.StatusSnapshot) model.StatusSnapshot {
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		s.UpdatedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	if s.Debug != nil {
		s.Debug = maps.Clone(s.Debug)
	}
	return s
}
