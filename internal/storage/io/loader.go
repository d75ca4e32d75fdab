package io

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/model"
)

// SnapshotYAMLLoader loads raw task status snapshots from YAML (or JSON) document streams.
//
// Every document can be a single snapshot or a list of snapshots.
type SnapshotYAMLLoader struct {
	fs     fs.FS
	logger log.Logger
}

// NewSnapshotYAMLLoader returns a new snapshot loader that reads files from filesystem.
func NewSnapshotYAMLLoader(filesystem fs.FS, logger log.Logger) *SnapshotYAMLLoader {
	if logger == nil {
		logger = log.Noop
	}

	return &SnapshotYAMLLoader{
		fs:     filesystem,
		logger: logger.WithValues(log.Kv{"svc": "io.SnapshotYAMLLoader"}),
	}
}

// LoadFile loads the snapshots of the file at path.
func (l *SnapshotYAMLLoader) LoadFile(ctx context.Context, path string) ([]model.StatusSnapshot, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshots file: %w", err)
	}
	defer f.Close()

	return l.Load(ctx, f)
}

// Load loads the snapshots of a document stream, normalized and validated.
func (l *SnapshotYAMLLoader) Load(ctx context.Context, r io.Reader) ([]model.StatusSnapshot, error) {
	dec := yaml.NewDecoder(r)

	var snapshots []model.StatusSnapshot
	for doc := 0; ; doc++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing document %d: %w", doc, err)
		}

		raws, err := decodeDocument(&node)
		if err != nil {
			return nil, fmt.Errorf("decoding document %d: %w", doc, err)
		}

		for i, raw := range raws {
			s, err := NormalizeSnapshot(raw, l.logger)
			if err != nil {
				return nil, fmt.Errorf("invalid snapshot %d of document %d: %w", i, doc, err)
			}
			snapshots = append(snapshots, s)
		}
	}

	return snapshots, nil
}

func decodeDocument(node *yaml.Node) ([]Snapshot, error) {
	content := node
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		content = node.Content[0]
	}

	switch content.Kind {
	case yaml.MappingNode:
		var s Snapshot
		if err := content.Decode(&s); err != nil {
			return nil, err
		}
		return []Snapshot{s}, nil
	case yaml.SequenceNode:
		var ss []Snapshot
		if err := content.Decode(&ss); err != nil {
			return nil, err
		}
		return ss, nil
	case yaml.ScalarNode:
		if content.Tag == "!!null" {
			return nil, nil
		}
	case 0:
		return nil, nil
	}

	return nil, fmt.Errorf("a snapshot or a list of snapshots is required")
}

// Snapshot represents the YAML (and JSON) structure of a raw task status snapshot.
type Snapshot struct {
	TaskID       string         `yaml:"task_id" json:"task_id"`
	Status       string         `yaml:"status" json:"status"`
	Progress     float64        `yaml:"progress" json:"progress"`
	Phase        string         `yaml:"phase" json:"phase"`
	ProgressText string         `yaml:"progress_text" json:"progress_text"`
	ErrorMessage string         `yaml:"error_message" json:"error_message"`
	UpdatedAt    string         `yaml:"updated_at" json:"updated_at"`
	CompletedAt  string         `yaml:"completed_at" json:"completed_at"`
	Debug        map[string]any `yaml:"debug" json:"debug"`
}

// NormalizeSnapshot validates a raw snapshot and maps it to the model. Unknown statuses
// are logged and replaced by the running status.
func NormalizeSnapshot(raw Snapshot, logger log.Logger) (model.StatusSnapshot, error) {
	if logger == nil {
		logger = log.Noop
	}

	taskID := strings.TrimSpace(raw.TaskID)
	if taskID == "" {
		return model.StatusSnapshot{}, fmt.Errorf("task_id is required: %w", model.ErrNotValid)
	}

	status, ok := model.ParseTaskStatus(raw.Status)
	if !ok {
		logger.Warningf("Unknown status %q of task %s, using %s", raw.Status, taskID, status)
	}

	serverPhase := strings.TrimSpace(raw.Phase)
	if p, ok := model.ParsePhase(serverPhase); ok {
		serverPhase = string(p)
	} else if serverPhase != "" {
		logger.Debugf("Unknown phase %q of task %s", serverPhase, taskID)
	}

	updatedAt, err := parseTime(raw.UpdatedAt)
	if err != nil {
		return model.StatusSnapshot{}, fmt.Errorf("updated_at: %w", err)
	}
	completedAt, err := parseTime(raw.CompletedAt)
	if err != nil {
		return model.StatusSnapshot{}, fmt.Errorf("completed_at: %w", err)
	}

	return model.StatusSnapshot{
		TaskID:       taskID,
		Status:       status,
		Progress:     raw.Progress,
		ServerPhase:  serverPhase,
		ProgressText: raw.ProgressText,
		ErrorMessage: raw.ErrorMessage,
		UpdatedAt:    updatedAt,
		CompletedAt:  completedAt,
		Debug:        raw.Debug,
	}, nil
}

func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("invalid RFC3339 timestamp %q: %w", s, model.ErrNotValid)
	}
	t = t.UTC()
	return &t, nil
}
