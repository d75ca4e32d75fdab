package docker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/source/docker"
)

type mockDockerClient struct {
	mock.Mock
}

func (m *mockDockerClient) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(container.InspectResponse), args.Error(1)
}

func inspectResponse(state container.State) container.InspectResponse {
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    "c0ffee",
			Name:  "/executor-task-1",
			State: &state,
		},
	}
}

func TestSourceSnapshot(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	finished := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	startedRaw := started.Format(time.RFC3339Nano)
	finishedRaw := finished.Format(time.RFC3339Nano)
	zeroRaw := "0001-01-01T00:00:00Z"

	tests := map[string]struct {
		mock     func(m *mockDockerClient)
		expSnap  model.StatusSnapshot
		expDebug map[string]any
		expErr   error
	}{
		"A created container should be booting the executor": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "created", StartedAt: zeroRaw, FinishedAt: zeroRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID:      "task-1",
				Status:      model.TaskStatusRunning,
				ServerPhase: "booting_executor",
			},
		},

		"A restarting container should be booting the executor": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "restarting", StartedAt: startedRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID:      "task-1",
				Status:      model.TaskStatusRunning,
				ServerPhase: "booting_executor",
				UpdatedAt:   &started,
			},
		},

		"A running container should be executing": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "running", Running: true, StartedAt: startedRaw, FinishedAt: zeroRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID:      "task-1",
				Status:      model.TaskStatusRunning,
				ServerPhase: "executing",
				UpdatedAt:   &started,
			},
		},

		"A paused container should be executing": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "paused", StartedAt: startedRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID:      "task-1",
				Status:      model.TaskStatusRunning,
				ServerPhase: "executing",
				UpdatedAt:   &started,
			},
		},

		"A container being removed should be cancelling": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "removing", StartedAt: startedRaw, FinishedAt: zeroRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID: "task-1",
				Status: model.TaskStatusCancelling,
			},
		},

		"A container that exited successfully should be completed": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "exited", StartedAt: startedRaw, FinishedAt: finishedRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID:      "task-1",
				Status:      model.TaskStatusCompleted,
				Progress:    100,
				UpdatedAt:   &finished,
				CompletedAt: &finished,
			},
		},

		"A container that exited with an error code should be failed": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "exited", ExitCode: 137, StartedAt: startedRaw, FinishedAt: finishedRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID:       "task-1",
				Status:       model.TaskStatusFailed,
				ErrorMessage: "executor container exited with exit code 137",
				UpdatedAt:    &finished,
				CompletedAt:  &finished,
			},
			expDebug: map[string]any{"exit_code": 137},
		},

		"A dead container should be failed with the docker error": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(inspectResponse(container.State{
					Status: "dead", Dead: true, Error: "oom killed", FinishedAt: finishedRaw,
				}), nil)
			},
			expSnap: model.StatusSnapshot{
				TaskID:       "task-1",
				Status:       model.TaskStatusFailed,
				ErrorMessage: "oom killed",
				UpdatedAt:    &finished,
				CompletedAt:  &finished,
			},
		},

		"A missing container should be not found": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(container.InspectResponse{}, cerrdefs.ErrNotFound)
			},
			expErr: model.ErrNotFound,
		},

		"A missing container reported by message should be not found": {
			mock: func(m *mockDockerClient) {
				m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(container.InspectResponse{}, fmt.Errorf("Error response from daemon: No such container: c0ffee"))
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := &mockDockerClient{}
			test.mock(m)

			src, err := docker.NewSource(docker.SourceConfig{Client: m, Logger: log.Noop})
			require.NoError(t, err)

			snap, err := src.Snapshot(context.Background(), "task-1", "c0ffee")
			m.AssertExpectations(t)

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, "c0ffee", snap.Debug["container_id"])
			assert.Equal(t, "executor-task-1", snap.Debug["container_name"])
			for k, v := range test.expDebug {
				assert.Equal(t, v, snap.Debug[k])
			}

			snap.Debug = nil
			assert.Equal(t, test.expSnap, snap)
		})
	}
}

func TestSourceSnapshotInspectError(t *testing.T) {
	m := &mockDockerClient{}
	m.On("ContainerInspect", mock.Anything, "c0ffee").Once().Return(container.InspectResponse{}, fmt.Errorf("connection refused"))

	src, err := docker.NewSource(docker.SourceConfig{Client: m})
	require.NoError(t, err)

	_, err = src.Snapshot(context.Background(), "task-1", "c0ffee")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNotFound)
}
