package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/printer"
	"github.com/taskscope/taskscope/internal/timeline"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func at(s int) *time.Time {
	t := t0.Add(time.Duration(s) * time.Second)
	return &t
}

func displayFixture() (model.RecordedSnapshot, model.Display) {
	snap := model.RecordedSnapshot{
		ID:         "01HXYZ",
		RecordedAt: *at(6),
		Snapshot: model.StatusSnapshot{
			TaskID:       "task-1",
			Status:       model.TaskStatusFailed,
			Progress:     40,
			ProgressText: "Running tests",
			ErrorMessage: "exit code 1",
			UpdatedAt:    at(5),
			Debug:        map[string]any{"api_key": "sk-1...cdef (len=19)", "attempt": 2},
		},
	}
	display := model.Display{
		Phase:    model.PhaseFailed,
		LabelKey: "chat:messages.phase_failed",
		Icon:     model.IconX,
		Tone:     model.ToneDanger,
		Progress: 40,
	}
	return snap, display
}

func timelineFixture() timeline.State {
	return timeline.State{
		SubjectID: "task-1",
		Now:       *at(75),
		Timeline: []model.TimelineEntry{
			{ID: "queued", Label: "chat:messages.phase_queued", StartedAt: *at(0), EndedAt: at(5)},
			{ID: "Running tests", Label: "Running tests", StartedAt: *at(5)},
		},
	}
}

func TestTablePrinterPrintDisplay(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	snap, display := displayFixture()
	require.NoError(t, p.PrintDisplay(snap, display))

	out := buf.String()
	assert.Contains(t, out, "Task:       task-1\n")
	assert.Contains(t, out, "Status:     FAILED\n")
	assert.Contains(t, out, "Phase:      failed\n")
	assert.Contains(t, out, "Icon:       x (danger)\n")
	assert.Contains(t, out, "Detail:     Running tests\n")
	assert.Contains(t, out, "Error:      exit code 1\n")
	assert.Contains(t, out, "Updated:    2024-05-01 10:00:05 UTC\n")
	assert.Contains(t, out, `"api_key": "sk-1...cdef (len=19)"`)
	assert.NotContains(t, out, "Progress:")
}

func TestTablePrinterPrintTimeline(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	state := timelineFixture()
	require.NoError(t, p.PrintTimeline(state, state.Timeline))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"STAGE", "STARTED", "ELAPSED", "STATE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"chat:messages.phase_queued", "2024-05-01", "10:00:00", "UTC", "5s", "done"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"Running", "tests", "2024-05-01", "10:00:05", "UTC", "1m10s", "active"}, strings.Fields(lines[2]))
}

func TestTablePrinterPrintEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintTimeline(timeline.State{}, nil))
	require.NoError(t, p.PrintTasks(nil))
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintTasks([]model.TaskSummary{
		{TaskID: "task-1", LastStatus: model.TaskStatusRunning, SnapshotCount: 3, LastRecordedAt: time.Now().Add(-2 * time.Hour)},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"TASK", "STATUS", "SNAPSHOTS", "LAST", "SEEN"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"task-1", "RUNNING", "3", "2", "hours", "ago", "(UTC)"}, strings.Fields(lines[1]))
}

func TestJSONPrinterPrintDisplay(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	snap, display := displayFixture()
	require.NoError(t, p.PrintDisplay(snap, display))

	exp := `{
  "task_id": "task-1",
  "snapshot_id": "01HXYZ",
  "status": "FAILED",
  "phase": "failed",
  "label_key": "chat:messages.phase_failed",
  "icon": "x",
  "tone": "danger",
  "progress": 40,
  "show_progress": false,
  "progress_text": "Running tests",
  "error_message": "exit code 1",
  "updated_at": "2024-05-01T10:00:05Z",
  "completed_at": null,
  "recorded_at": "2024-05-01T10:00:06Z",
  "debug": {
    "api_key": "sk-1...cdef (len=19)",
    "attempt": 2
  }
}
`
	assert.Equal(t, exp, buf.String())
}

func TestJSONPrinterPrintTimeline(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	state := timelineFixture()
	require.NoError(t, p.PrintTimeline(state, state.Timeline))

	var got printer.TimelineOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "task-1", got.TaskID)
	assert.False(t, got.Terminal)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, float64(5), got.Entries[0].ElapsedSeconds)
	assert.Equal(t, float64(70), got.Entries[1].ElapsedSeconds)
	assert.Nil(t, got.Entries[1].EndedAt)
}

func TestJSONPrinterPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintTasks([]model.TaskSummary{
		{TaskID: "task-1", LastStatus: model.TaskStatusCompleted, SnapshotCount: 2, FirstRecorded: t0, LastRecordedAt: *at(3)},
	})
	require.NoError(t, err)

	exp := `[
  {
    "task_id": "task-1",
    "last_status": "COMPLETED",
    "snapshot_count": 2,
    "first_recorded_at": "2024-05-01T10:00:00Z",
    "last_recorded_at": "2024-05-01T10:00:03Z"
  }
]
`
	assert.Equal(t, exp, buf.String())
}

func TestJSONPrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintMessage("hello"))
	assert.Equal(t, "{\n  \"message\": \"hello\"\n}\n", buf.String())
}
