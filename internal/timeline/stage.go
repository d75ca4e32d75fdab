package timeline

import (
	"strings"
	"time"

	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/phase"
)

// ObservationFromSnapshot converts a status snapshot into a timeline observation.
//
// The stage is identified by the progress text when present, then by the server phase
// and finally by the derived phase. Soft-deleted tasks never produce a stage.
func ObservationFromSnapshot(d phase.Deriver, s model.StatusSnapshot, now time.Time) model.Observation {
	obs := model.Observation{
		SubjectID:  s.TaskID,
		EventAt:    now,
		Terminal:   s.Status.IsTerminal(),
		TerminalAt: s.CompletedAt,
	}
	if s.UpdatedAt != nil && !s.UpdatedAt.IsZero() {
		obs.EventAt = *s.UpdatedAt
	}

	if s.Status == model.TaskStatusDelete {
		return obs
	}

	display := d.GetDisplay(s.Status, s.Progress, s.ServerPhase)
	text := strings.TrimSpace(s.ProgressText)
	serverPhase := strings.TrimSpace(s.ServerPhase)

	switch {
	case text != "":
		obs.StageLabel = text
	case s.Status == model.TaskStatusCancelling:
		obs.StageLabel = s.Status.LabelKey()
	default:
		obs.StageLabel = display.LabelKey
	}

	switch {
	case text != "":
		obs.StageID = text
	case serverPhase != "":
		obs.StageID = serverPhase
	default:
		obs.StageID = string(display.Phase)
	}

	return obs
}
