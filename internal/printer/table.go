package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/sanitize"
	"github.com/taskscope/taskscope/internal/timeline"
)

// TablePrinter prints task information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintDisplay prints the display of a task status.
func (t *TablePrinter) PrintDisplay(snap model.RecordedSnapshot, display model.Display) error {
	s := snap.Snapshot
	fmt.Fprintf(t.writer, "Task:       %s\n", s.TaskID)
	fmt.Fprintf(t.writer, "Status:     %s\n", s.Status)
	fmt.Fprintf(t.writer, "Phase:      %s\n", display.Phase)
	fmt.Fprintf(t.writer, "Label:      %s\n", display.LabelKey)
	fmt.Fprintf(t.writer, "Icon:       %s (%s)\n", display.Icon, display.Tone)

	if display.ShowProgress {
		fmt.Fprintf(t.writer, "Progress:   %d%%\n", display.Progress)
	}
	if text := strings.TrimSpace(s.ProgressText); text != "" {
		fmt.Fprintf(t.writer, "Detail:     %s\n", text)
	}
	if s.ErrorMessage != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", s.ErrorMessage)
	}
	if s.UpdatedAt != nil {
		fmt.Fprintf(t.writer, "Updated:    %s\n", FormatTimestamp(*s.UpdatedAt))
	}
	if s.CompletedAt != nil {
		fmt.Fprintf(t.writer, "Completed:  %s\n", FormatTimestamp(*s.CompletedAt))
	}
	fmt.Fprintf(t.writer, "Recorded:   %s\n", FormatTimestamp(snap.RecordedAt))

	if len(s.Debug) > 0 {
		fmt.Fprintf(t.writer, "Debug:\n%s\n", sanitize.SafePrettyJSON(s.Debug))
	}

	return nil
}

// PrintTimeline prints timeline entries with their elapsed time.
func (t *TablePrinter) PrintTimeline(state timeline.State, entries []model.TimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "STAGE\tSTARTED\tELAPSED\tSTATE")

	for _, e := range entries {
		st := "done"
		if e.EndedAt == nil {
			st = "active"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Label,
			FormatTimestamp(e.StartedAt),
			FormatElapsed(e.Elapsed(state.Now)),
			st,
		)
	}

	return nil
}

// PrintTasks prints task summaries in a table format.
func (t *TablePrinter) PrintTasks(tasks []model.TaskSummary) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TASK\tSTATUS\tSNAPSHOTS\tLAST SEEN")

	now := time.Now()
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", task.TaskID, task.LastStatus, task.SnapshotCount, TimeAgo(task.LastRecordedAt, now))
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
