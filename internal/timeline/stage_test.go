package timeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/phase"
	"github.com/taskscope/taskscope/internal/timeline"
)

func TestObservationFromSnapshot(t *testing.T) {
	now := at(time.Hour)
	updatedAt := at(10 * time.Second)
	completedAt := at(20 * time.Second)

	tests := map[string]struct {
		snapshot model.StatusSnapshot
		expObs   model.Observation
	}{
		"progress text should identify and label the stage": {
			snapshot: model.StatusSnapshot{
				TaskID:       "t1",
				Status:       model.TaskStatusRunning,
				ServerPhase:  "pulling_image",
				ProgressText: "  Pulling image ubuntu  ",
				UpdatedAt:    &updatedAt,
			},
			expObs: model.Observation{
				SubjectID:  "t1",
				StageID:    "Pulling image ubuntu",
				StageLabel: "Pulling image ubuntu",
				EventAt:    updatedAt,
			},
		},
		"server phase should identify the stage": {
			snapshot: model.StatusSnapshot{
				TaskID:      "t1",
				Status:      model.TaskStatusRunning,
				ServerPhase: " loading_skills ",
			},
			expObs: model.Observation{
				SubjectID:  "t1",
				StageID:    "loading_skills",
				StageLabel: "chat:messages.phase_loading_skills",
				EventAt:    now,
			},
		},
		"unknown server phase should still identify the stage": {
			snapshot: model.StatusSnapshot{
				TaskID:      "t1",
				Status:      model.TaskStatusRunning,
				ServerPhase: "warming_up",
			},
			expObs: model.Observation{
				SubjectID:  "t1",
				StageID:    "warming_up",
				StageLabel: "chat:messages.phase_executing",
				EventAt:    now,
			},
		},
		"derived phase should be the fallback stage": {
			snapshot: model.StatusSnapshot{
				TaskID: "t1",
				Status: model.TaskStatusPending,
			},
			expObs: model.Observation{
				SubjectID:  "t1",
				StageID:    "queued",
				StageLabel: "chat:messages.phase_queued",
				EventAt:    now,
			},
		},
		"cancelling should use the status label": {
			snapshot: model.StatusSnapshot{
				TaskID: "t1",
				Status: model.TaskStatusCancelling,
			},
			expObs: model.Observation{
				SubjectID:  "t1",
				StageID:    "cancelled",
				StageLabel: "chat:messages.status_cancelling",
				EventAt:    now,
			},
		},
		"terminal snapshots should carry the completion time": {
			snapshot: model.StatusSnapshot{
				TaskID:      "t1",
				Status:      model.TaskStatusCompleted,
				UpdatedAt:   &updatedAt,
				CompletedAt: &completedAt,
			},
			expObs: model.Observation{
				SubjectID:  "t1",
				StageID:    "completed",
				StageLabel: "chat:messages.phase_completed",
				EventAt:    updatedAt,
				Terminal:   true,
				TerminalAt: &completedAt,
			},
		},
		"deleted tasks should be terminal without stage": {
			snapshot: model.StatusSnapshot{
				TaskID: "t1",
				Status: model.TaskStatusDelete,
			},
			expObs: model.Observation{
				SubjectID: "t1",
				EventAt:   now,
				Terminal:  true,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := timeline.ObservationFromSnapshot(phase.Deriver{}, test.snapshot, now)
			assert.Equal(t, test.expObs, got)
		})
	}
}

func TestSnapshotsIntoAccumulator(t *testing.T) {
	assert := assert.New(t)

	acc := newAccumulator(t, timeline.AccumulatorConfig{})
	snapshots := []model.StatusSnapshot{
		{TaskID: "7", Status: model.TaskStatusPending, UpdatedAt: ptr(at(0))},
		{TaskID: "7", Status: model.TaskStatusRunning, ServerPhase: "booting_executor", UpdatedAt: ptr(at(2 * time.Second))},
		{TaskID: "7", Status: model.TaskStatusRunning, ServerPhase: "booting_executor", Progress: 10, UpdatedAt: ptr(at(3 * time.Second))},
		{TaskID: "7", Status: model.TaskStatusRunning, ServerPhase: "executing", Progress: 60, UpdatedAt: ptr(at(9 * time.Second))},
		{TaskID: "7", Status: model.TaskStatusFailed, UpdatedAt: ptr(at(12 * time.Second)), CompletedAt: ptr(at(11 * time.Second))},
	}
	for _, s := range snapshots {
		acc.Observe(timeline.ObservationFromSnapshot(phase.Deriver{}, s, at(time.Hour)))
	}

	state := acc.State()
	assert.True(state.Terminal)
	assert.Equal([]model.TimelineEntry{
		{ID: "queued", Label: "chat:messages.phase_queued", StartedAt: at(0), EndedAt: ptr(at(2 * time.Second))},
		{ID: "booting_executor", Label: "chat:messages.phase_booting_executor", StartedAt: at(2 * time.Second), EndedAt: ptr(at(9 * time.Second))},
		{ID: "executing", Label: "chat:messages.phase_executing", StartedAt: at(9 * time.Second), EndedAt: ptr(at(11 * time.Second))},
	}, state.Timeline)
	assert.Equal(2*time.Second, state.Timeline[2].Elapsed(state.Now))
}
