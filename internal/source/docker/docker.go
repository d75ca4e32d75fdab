package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/model"
)

// DockerClient is the interface for the Docker operations that we use.
type DockerClient interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// SourceConfig is the configuration for the Docker status source.
type SourceConfig struct {
	Client DockerClient
	Logger log.Logger
}

func (c *SourceConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "source.Docker"})
	return nil
}

// Source derives task status snapshots from the state of the task executor container.
type Source struct {
	client DockerClient
	logger log.Logger
}

// NewSource creates a new Docker status source.
func NewSource(cfg SourceConfig) (*Source, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Source{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// Snapshot inspects the executor container of a task and returns its status snapshot.
func (s *Source) Snapshot(ctx context.Context, taskID, containerID string) (model.StatusSnapshot, error) {
	s.logger.Debugf("Inspecting container: %s", containerID)
	info, err := s.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if cerrdefs.IsNotFound(err) || strings.Contains(err.Error(), "No such container") {
			return model.StatusSnapshot{}, fmt.Errorf("container %s: %w", containerID, model.ErrNotFound)
		}
		return model.StatusSnapshot{}, fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return model.StatusSnapshot{}, fmt.Errorf("container %s has no state", containerID)
	}

	return snapshotFromState(taskID, info), nil
}

func snapshotFromState(taskID string, info container.InspectResponse) model.StatusSnapshot {
	state := info.State
	snap := model.StatusSnapshot{
		TaskID: taskID,
		Debug: map[string]any{
			"container_id":   info.ID,
			"container_name": strings.TrimPrefix(info.Name, "/"),
			"state":          string(state.Status),
			"exit_code":      state.ExitCode,
			"restart_count":  info.RestartCount,
		},
	}

	startedAt := parseDockerTime(state.StartedAt)
	finishedAt := parseDockerTime(state.FinishedAt)

	switch string(state.Status) {
	case "created", "restarting":
		snap.Status = model.TaskStatusRunning
		snap.ServerPhase = string(model.PhaseBootingExecutor)
		snap.UpdatedAt = startedAt
	case "running", "paused":
		snap.Status = model.TaskStatusRunning
		snap.ServerPhase = string(model.PhaseExecuting)
		snap.UpdatedAt = startedAt
	case "removing":
		snap.Status = model.TaskStatusCancelling
		snap.UpdatedAt = finishedAt
	case "exited":
		snap.UpdatedAt = finishedAt
		snap.CompletedAt = finishedAt
		if state.ExitCode == 0 {
			snap.Status = model.TaskStatusCompleted
			snap.Progress = 100
			break
		}
		snap.Status = model.TaskStatusFailed
		snap.ErrorMessage = exitMessage(state)
	default:
		// Dead and unknown states.
		snap.Status = model.TaskStatusFailed
		snap.ErrorMessage = exitMessage(state)
		snap.UpdatedAt = finishedAt
		snap.CompletedAt = finishedAt
	}

	return snap
}

func exitMessage(state *container.State) string {
	if state.Error != "" {
		return state.Error
	}
	return fmt.Sprintf("executor container %s with exit code %d", state.Status, state.ExitCode)
}

// parseDockerTime parses Docker timestamps, the zero time Docker reports for unset
// values is returned as nil.
func parseDockerTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() || t.Year() <= 1 {
		return nil
	}
	t = t.UTC()
	return &t
}
