package printer

import (
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/timeline"
)

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintDisplay(snap model.RecordedSnapshot, display model.Display) error
	PrintTimeline(state timeline.State, entries []model.TimelineEntry) error
	PrintTasks(tasks []model.TaskSummary) error
	PrintMessage(msg string) error
}
