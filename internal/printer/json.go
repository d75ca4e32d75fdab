package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/timeline"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// DisplayOutput is the JSON representation of a task display.
type DisplayOutput struct {
	TaskID       string     `json:"task_id"`
	SnapshotID   string     `json:"snapshot_id"`
	Status       string     `json:"status"`
	Phase        string     `json:"phase"`
	LabelKey     string     `json:"label_key"`
	Icon         string     `json:"icon"`
	Tone         string     `json:"tone"`
	Progress     int        `json:"progress"`
	ShowProgress bool       `json:"show_progress"`
	ProgressText string     `json:"progress_text,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	RecordedAt   time.Time  `json:"recorded_at"`
	Debug        any        `json:"debug,omitempty"`
}

// TimelineEntryOutput is the JSON representation of a timeline entry.
type TimelineEntryOutput struct {
	ID             string     `json:"id"`
	Label          string     `json:"label"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
}

// TimelineOutput is the JSON representation of a task timeline.
type TimelineOutput struct {
	TaskID   string                `json:"task_id"`
	Now      time.Time             `json:"now"`
	Terminal bool                  `json:"terminal"`
	Entries  []TimelineEntryOutput `json:"entries"`
}

// taskOutput represents a task summary output.
type taskOutput struct {
	TaskID         string    `json:"task_id"`
	LastStatus     string    `json:"last_status"`
	SnapshotCount  int       `json:"snapshot_count"`
	FirstRecorded  time.Time `json:"first_recorded_at"`
	LastRecordedAt time.Time `json:"last_recorded_at"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// NewDisplayOutput maps a display and its snapshot to its JSON representation. The debug
// payload is expected to be sanitized when recorded.
func NewDisplayOutput(snap model.RecordedSnapshot, display model.Display) DisplayOutput {
	s := snap.Snapshot
	out := DisplayOutput{
		TaskID:       s.TaskID,
		SnapshotID:   snap.ID,
		Status:       string(s.Status),
		Phase:        string(display.Phase),
		LabelKey:     display.LabelKey,
		Icon:         string(display.Icon),
		Tone:         string(display.Tone),
		Progress:     display.Progress,
		ShowProgress: display.ShowProgress,
		ProgressText: s.ProgressText,
		ErrorMessage: s.ErrorMessage,
		UpdatedAt:    utcPtr(s.UpdatedAt),
		CompletedAt:  utcPtr(s.CompletedAt),
		RecordedAt:   snap.RecordedAt.UTC(),
	}
	if len(s.Debug) > 0 {
		out.Debug = s.Debug
	}
	return out
}

// NewTimelineOutput maps timeline entries to their JSON representation.
func NewTimelineOutput(state timeline.State, entries []model.TimelineEntry) TimelineOutput {
	out := TimelineOutput{
		TaskID:   state.SubjectID,
		Now:      state.Now.UTC(),
		Terminal: state.Terminal,
		Entries:  make([]TimelineEntryOutput, 0, len(entries)),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, TimelineEntryOutput{
			ID:             e.ID,
			Label:          e.Label,
			StartedAt:      e.StartedAt.UTC(),
			EndedAt:        utcPtr(e.EndedAt),
			ElapsedSeconds: e.Elapsed(state.Now).Seconds(),
		})
	}
	return out
}

// PrintDisplay prints the display of a task status in JSON format.
func (j *JSONPrinter) PrintDisplay(snap model.RecordedSnapshot, display model.Display) error {
	return j.encode(NewDisplayOutput(snap, display))
}

// PrintTimeline prints timeline entries in JSON format.
func (j *JSONPrinter) PrintTimeline(state timeline.State, entries []model.TimelineEntry) error {
	return j.encode(NewTimelineOutput(state, entries))
}

// PrintTasks prints task summaries in JSON format.
func (j *JSONPrinter) PrintTasks(tasks []model.TaskSummary) error {
	items := make([]taskOutput, len(tasks))
	for i, t := range tasks {
		items[i] = taskOutput{
			TaskID:         t.TaskID,
			LastStatus:     string(t.LastStatus),
			SnapshotCount:  t.SnapshotCount,
			FirstRecorded:  t.FirstRecorded.UTC(),
			LastRecordedAt: t.LastRecordedAt.UTC(),
		}
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
