package storage

import (
	"context"

	"github.com/taskscope/taskscope/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name Repository

// Repository is the interface for task status snapshot persistence.
//
// Snapshots of a task are returned in recording order.
type Repository interface {
	// AppendSnapshot records a new snapshot of a task.
	AppendSnapshot(ctx context.Context, s model.StatusSnapshot) (*model.RecordedSnapshot, error)
	// ListSnapshots returns all the recorded snapshots of a task.
	ListSnapshots(ctx context.Context, taskID string) ([]model.RecordedSnapshot, error)
	// ListSnapshotsAfter returns the snapshots of a task recorded after the snapshot with afterID.
	// An empty afterID returns all the snapshots.
	ListSnapshotsAfter(ctx context.Context, taskID, afterID string) ([]model.RecordedSnapshot, error)
	// LatestSnapshot returns the last recorded snapshot of a task.
	LatestSnapshot(ctx context.Context, taskID string) (*model.RecordedSnapshot, error)
	// ListTasks returns a summary of every task with recorded snapshots.
	ListTasks(ctx context.Context) ([]model.TaskSummary, error)
	// DeleteTask removes all the snapshots of a task.
	DeleteTask(ctx context.Context, taskID string) error
}
