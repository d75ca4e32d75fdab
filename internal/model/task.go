package model

import (
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of an agent task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is queued and waiting for an executor.
	TaskStatusPending TaskStatus = "PENDING"
	// TaskStatusRunning indicates the task is being executed.
	TaskStatusRunning TaskStatus = "RUNNING"
	// TaskStatusCancelling indicates a cancel was requested and is in progress.
	TaskStatusCancelling TaskStatus = "CANCELLING"
	// TaskStatusCancelled indicates the task was cancelled.
	TaskStatusCancelled TaskStatus = "CANCELLED"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "COMPLETED"
	// TaskStatusFailed indicates the task finished with an error.
	TaskStatusFailed TaskStatus = "FAILED"
	// TaskStatusDelete is the legacy soft-deleted state. It is terminal and inactive.
	TaskStatusDelete TaskStatus = "DELETE"
)

// ParseTaskStatus normalizes a raw status value. Empty values are pending and "QUEUED" is
// accepted as an alias of pending. Unknown values return the running status (the most
// conservative non-terminal state) and false.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case "", "QUEUED":
		return TaskStatusPending, true
	case TaskStatusPending, TaskStatusRunning, TaskStatusCancelling, TaskStatusCancelled,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusDelete:
		return st, true
	}

	return TaskStatusRunning, false
}

// IsActive returns true when the task is still expected to make progress.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusPending || s == TaskStatusRunning || s == TaskStatusCancelling
}

// IsTerminal returns true when no further progress is expected for the task.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled, TaskStatusDelete:
		return true
	}
	return false
}

// LabelKey returns the i18n key of the status label. Soft-deleted and unknown
// statuses have no label.
func (s TaskStatus) LabelKey() string {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCancelling, TaskStatusCancelled,
		TaskStatusCompleted, TaskStatusFailed:
		return "chat:messages.status_" + strings.ToLower(string(s))
	}
	return ""
}

// Phase is a coarse-grained execution stage used for display.
type Phase string

const (
	PhaseQueued          Phase = "queued"
	PhaseBootingExecutor Phase = "booting_executor"
	PhasePullingImage    Phase = "pulling_image"
	PhaseLoadingSkills   Phase = "loading_skills"
	PhaseExecuting       Phase = "executing"
	PhaseSyncing         Phase = "syncing"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
	PhaseCancelled       Phase = "cancelled"
)

// Phases are all the known phases in execution order.
var Phases = []Phase{
	PhaseQueued,
	PhaseBootingExecutor,
	PhasePullingImage,
	PhaseLoadingSkills,
	PhaseExecuting,
	PhaseSyncing,
	PhaseCompleted,
	PhaseFailed,
	PhaseCancelled,
}

// ParsePhase returns the known phase named by s (trimmed, case-insensitive).
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Phases {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Icon is the visual hint of a phase.
type Icon string

const (
	IconSpinner Icon = "spinner"
	IconClock   Icon = "clock"
	IconCheck   Icon = "check"
	IconX       Icon = "x"
	IconBan     Icon = "ban"
)

// Tone is the color treatment of a phase.
type Tone string

const (
	TonePrimary Tone = "primary"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
	ToneMuted   Tone = "muted"
)

// Display is the derived presentation of a task status.
type Display struct {
	Phase        Phase
	LabelKey     string
	Icon         Icon
	Tone         Tone
	Progress     int
	ShowProgress bool
}

// StatusSnapshot is a normalized observation of a task status as reported upstream.
type StatusSnapshot struct {
	TaskID       string
	Status       TaskStatus
	Progress     float64
	ServerPhase  string
	ProgressText string
	ErrorMessage string
	UpdatedAt    *time.Time
	CompletedAt  *time.Time
	// Debug is an optional diagnostic payload attached to the snapshot.
	Debug map[string]any
}

// RecordedSnapshot is a snapshot persisted by the storage layer.
type RecordedSnapshot struct {
	ID         string
	RecordedAt time.Time
	Snapshot   StatusSnapshot
}

// TaskSummary is the aggregated view of the recorded snapshots of a task.
type TaskSummary struct {
	TaskID         string
	LastStatus     TaskStatus
	SnapshotCount  int
	FirstRecorded  time.Time
	LastRecordedAt time.Time
}

// Observation is a single input of a phase timeline.
type Observation struct {
	SubjectID  string
	StageID    string
	StageLabel string
	EventAt    time.Time
	Terminal   bool
	TerminalAt *time.Time
}

// TimelineEntry is a labeled interval of time a task spent in a stage.
// EndedAt is nil while the stage is still open.
type TimelineEntry struct {
	ID        string
	Label     string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Elapsed returns the time spent in the stage, using now for open entries.
func (t TimelineEntry) Elapsed(now time.Time) time.Duration {
	end := now
	if t.EndedAt != nil {
		end = *t.EndedAt
	}

	d := end.Sub(t.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
