package watch

import (
	"context"
	"fmt"

	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/storage"
)

// RepositoryPoller polls the snapshots recorded in a repository.
type RepositoryPoller struct {
	repo   storage.Repository
	taskID string
	lastID string
}

// NewRepositoryPoller returns a poller of the snapshots of a task recorded in repo.
func NewRepositoryPoller(repo storage.Repository, taskID string) *RepositoryPoller {
	return &RepositoryPoller{repo: repo, taskID: taskID}
}

// Poll returns the snapshots recorded since the previous poll.
func (p *RepositoryPoller) Poll(ctx context.Context) ([]model.StatusSnapshot, error) {
	recs, err := p.repo.ListSnapshotsAfter(ctx, p.taskID, p.lastID)
	if err != nil {
		return nil, fmt.Errorf("could not list snapshots: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	p.lastID = recs[len(recs)-1].ID
	snaps := make([]model.StatusSnapshot, 0, len(recs))
	for _, r := range recs {
		snaps = append(snaps, r.Snapshot)
	}
	return snaps, nil
}

// ContainerSource returns the status snapshot of the executor container of a task.
type ContainerSource interface {
	Snapshot(ctx context.Context, taskID, containerID string) (model.StatusSnapshot, error)
}

// ContainerPoller polls the state of the executor container of a task.
type ContainerPoller struct {
	source      ContainerSource
	taskID      string
	containerID string
}

// NewContainerPoller returns a poller of the executor container of a task.
func NewContainerPoller(source ContainerSource, taskID, containerID string) *ContainerPoller {
	return &ContainerPoller{source: source, taskID: taskID, containerID: containerID}
}

// Poll returns the current snapshot of the container.
func (p *ContainerPoller) Poll(ctx context.Context) ([]model.StatusSnapshot, error) {
	snap, err := p.source.Snapshot(ctx, p.taskID, p.containerID)
	if err != nil {
		return nil, err
	}
	return []model.StatusSnapshot{snap}, nil
}
