package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
	// NowFunc returns the recording time of snapshots.
	NowFunc func() time.Time
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db       *sql.DB
	migrator *migrations.Migrator
	logger   log.Logger
	nowFunc  func() time.Time
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{
		db:       db,
		migrator: migrator,
		logger:   cfg.Logger,
		nowFunc:  cfg.NowFunc,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// SchemaVersion returns the applied migration version.
func (r *Repository) SchemaVersion(ctx context.Context) (uint, error) {
	version, dirty, err := r.migrator.Version(ctx)
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// AppendSnapshot records a new snapshot of a task.
func (r *Repository) AppendSnapshot(ctx context.Context, s model.StatusSnapshot) (*model.RecordedSnapshot, error) {
	if strings.TrimSpace(s.TaskID) == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	debug := ""
	if len(s.Debug) > 0 {
		data, err := json.Marshal(s.Debug)
		if err != nil {
			return nil, fmt.Errorf("could not marshal debug payload: %w", err)
		}
		debug = string(data)
	}

	rec := model.RecordedSnapshot{
		ID:         ulid.Make().String(),
		RecordedAt: r.nowFunc().UTC(),
		Snapshot:   s,
	}

	query := `
		INSERT INTO snapshots (
			id, task_id, status,
			progress, server_phase, progress_text, error_message,
			debug,
			updated_at, completed_at, recorded_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		s.TaskID,
		s.Status,
		finiteOrZero(s.Progress),
		s.ServerPhase,
		s.ProgressText,
		s.ErrorMessage,
		debug,
		unixMilliOrNil(s.UpdatedAt),
		unixMilliOrNil(s.CompletedAt),
		rec.RecordedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: snapshots.") {
			return nil, fmt.Errorf("snapshot already exists: %w", model.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("could not insert snapshot: %w", err)
	}

	r.logger.Debugf("Recorded snapshot %s of task %s", rec.ID, s.TaskID)
	return &rec, nil
}

const selectSnapshot = `
	SELECT
		id, task_id, status,
		progress, server_phase, progress_text, error_message,
		debug,
		updated_at, completed_at, recorded_at
	FROM snapshots
`

// ListSnapshots returns all the recorded snapshots of a task.
func (r *Repository) ListSnapshots(ctx context.Context, taskID string) ([]model.RecordedSnapshot, error) {
	return r.ListSnapshotsAfter(ctx, taskID, "")
}

// ListSnapshotsAfter returns the snapshots of a task recorded after afterID.
func (r *Repository) ListSnapshotsAfter(ctx context.Context, taskID, afterID string) ([]model.RecordedSnapshot, error) {
	query := selectSnapshot + `
		WHERE task_id = ? AND id > ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, taskID, afterID)
	if err != nil {
		return nil, fmt.Errorf("could not query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.RecordedSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return snapshots, nil
}

// LatestSnapshot returns the last recorded snapshot of a task.
func (r *Repository) LatestSnapshot(ctx context.Context, taskID string) (*model.RecordedSnapshot, error) {
	query := selectSnapshot + `
		WHERE task_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	s, err := scanSnapshot(r.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query snapshot: %w", err)
	}

	return &s, nil
}

// ListTasks returns a summary of every task with recorded snapshots, most recent first.
func (r *Repository) ListTasks(ctx context.Context) ([]model.TaskSummary, error) {
	query := `
		SELECT
			s.task_id,
			(SELECT l.status FROM snapshots l WHERE l.task_id = s.task_id ORDER BY l.id DESC LIMIT 1),
			COUNT(*),
			MIN(s.recorded_at),
			MAX(s.recorded_at)
		FROM snapshots s
		GROUP BY s.task_id
		ORDER BY MAX(s.recorded_at) DESC, s.task_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.TaskSummary
	for rows.Next() {
		var t model.TaskSummary
		var first, last int64
		if err := rows.Scan(&t.TaskID, &t.LastStatus, &t.SnapshotCount, &first, &last); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		t.FirstRecorded = timeFromUnixMilli(first)
		t.LastRecordedAt = timeFromUnixMilli(last)
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// DeleteTask removes all the snapshots of a task.
func (r *Repository) DeleteTask(ctx context.Context, taskID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("could not delete task snapshots: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted %d snapshots of task %s", rows, taskID)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (model.RecordedSnapshot, error) {
	var rec model.RecordedSnapshot
	var debug string
	var updatedAt, completedAt sql.NullInt64
	var recordedAt int64

	err := s.Scan(
		&rec.ID,
		&rec.Snapshot.TaskID,
		&rec.Snapshot.Status,
		&rec.Snapshot.Progress,
		&rec.Snapshot.ServerPhase,
		&rec.Snapshot.ProgressText,
		&rec.Snapshot.ErrorMessage,
		&debug,
		&updatedAt,
		&completedAt,
		&recordedAt,
	)
	if err != nil {
		return model.RecordedSnapshot{}, err
	}

	if debug != "" {
		if err := json.Unmarshal([]byte(debug), &rec.Snapshot.Debug); err != nil {
			return model.RecordedSnapshot{}, fmt.Errorf("could not unmarshal debug payload: %w", err)
		}
	}

	rec.RecordedAt = timeFromUnixMilli(recordedAt)
	if updatedAt.Valid {
		t := timeFromUnixMilli(updatedAt.Int64)
		rec.Snapshot.UpdatedAt = &t
	}
	if completedAt.Valid {
		t := timeFromUnixMilli(completedAt.Int64)
		rec.Snapshot.CompletedAt = &t
	}

	return rec, nil
}

func unixMilliOrNil(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func timeFromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
