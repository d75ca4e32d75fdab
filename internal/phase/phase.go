// Package phase derives the display phase of a task from its reported status.
//
// Derivation is a pure function of the status, the progress and the optional phase
// hinted by the server. A known server phase always wins; otherwise the status decides
// and every non-terminal status collapses to the executing phase.
package phase

import (
	"math"

	"github.com/taskscope/taskscope/internal/model"
)

type phaseConfig struct {
	labelKey     string
	icon         model.Icon
	tone         model.Tone
	showProgress bool
}

var phaseConfigs = map[model.Phase]phaseConfig{
	model.PhaseQueued:          {labelKey: "chat:messages.phase_queued", icon: model.IconClock, tone: model.ToneInfo},
	model.PhaseBootingExecutor: {labelKey: "chat:messages.phase_booting_executor", icon: model.IconSpinner, tone: model.TonePrimary, showProgress: true},
	model.PhasePullingImage:    {labelKey: "chat:messages.phase_pulling_image", icon: model.IconSpinner, tone: model.TonePrimary, showProgress: true},
	model.PhaseLoadingSkills:   {labelKey: "chat:messages.phase_loading_skills", icon: model.IconSpinner, tone: model.TonePrimary, showProgress: true},
	model.PhaseExecuting:       {labelKey: "chat:messages.phase_executing", icon: model.IconSpinner, tone: model.TonePrimary, showProgress: true},
	model.PhaseSyncing:         {labelKey: "chat:messages.phase_syncing", icon: model.IconSpinner, tone: model.TonePrimary, showProgress: true},
	model.PhaseCompleted:       {labelKey: "chat:messages.phase_completed", icon: model.IconCheck, tone: model.ToneSuccess},
	model.PhaseFailed:          {labelKey: "chat:messages.phase_failed", icon: model.IconX, tone: model.ToneDanger},
	model.PhaseCancelled:       {labelKey: "chat:messages.phase_cancelled", icon: model.IconBan, tone: model.ToneMuted},
}

// DeriverConfig is the configuration of a Deriver.
type DeriverConfig struct {
	// LegacyProgressInference enables the old behavior of inferring running sub-phases
	// from progress buckets. It is disabled by default.
	LegacyProgressInference bool
}

// Deriver derives execution phases and their display metadata.
type Deriver struct {
	legacy bool
}

// NewDeriver returns a new Deriver.
func NewDeriver(cfg DeriverConfig) Deriver {
	return Deriver{legacy: cfg.LegacyProgressInference}
}

var defaultDeriver = NewDeriver(DeriverConfig{})

// Derive returns the execution phase using the default deriver.
func Derive(status model.TaskStatus, progress float64, serverPhase string) model.Phase {
	return defaultDeriver.Derive(status, progress, serverPhase)
}

// GetDisplay returns the display metadata using the default deriver.
func GetDisplay(status model.TaskStatus, progress float64, serverPhase string) model.Display {
	return defaultDeriver.GetDisplay(status, progress, serverPhase)
}

// Derive returns the execution phase for the received inputs.
func (d Deriver) Derive(status model.TaskStatus, progress float64, serverPhase string) model.Phase {
	if p, ok := model.ParsePhase(serverPhase); ok {
		return p
	}

	switch status {
	case model.TaskStatusPending, "":
		return model.PhaseQueued
	case model.TaskStatusFailed:
		return model.PhaseFailed
	case model.TaskStatusCancelled, model.TaskStatusCancelling:
		return model.PhaseCancelled
	case model.TaskStatusCompleted:
		return model.PhaseCompleted
	case model.TaskStatusRunning:
		if d.legacy {
			return phaseFromProgress(ClampProgress(progress))
		}
	}

	return model.PhaseExecuting
}

// GetDisplay returns the phase with its display metadata for the received inputs.
func (d Deriver) GetDisplay(status model.TaskStatus, progress float64, serverPhase string) model.Display {
	p := d.Derive(status, progress, serverPhase)
	cfg := phaseConfigs[p]

	return model.Display{
		Phase:        p,
		LabelKey:     cfg.labelKey,
		Icon:         cfg.icon,
		Tone:         cfg.tone,
		Progress:     ClampProgress(progress),
		ShowProgress: d.legacy && cfg.showProgress,
	}
}

// ClampProgress clamps progress into [0, 100]. Non-finite values are 0.
func ClampProgress(progress float64) int {
	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		return 0
	}

	return int(math.Min(math.Max(progress, 0), 100))
}

// phaseFromProgress is the legacy bucket inference for running tasks.
func phaseFromProgress(progress int) model.Phase {
	switch {
	case progress < 20:
		return model.PhaseBootingExecutor
	case progress < 40:
		return model.PhasePullingImage
	case progress < 60:
		return model.PhaseLoadingSkills
	case progress < 90:
		return model.PhaseExecuting
	case progress < 100:
		return model.PhaseSyncing
	}
	return model.PhaseCompleted
}
