package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskscope/taskscope/internal/app/display"
	"github.com/taskscope/taskscope/internal/app/record"
	appsanitize "github.com/taskscope/taskscope/internal/app/sanitize"
	apptimeline "github.com/taskscope/taskscope/internal/app/timeline"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/printer"
	"github.com/taskscope/taskscope/internal/providerurl"
	storageio "github.com/taskscope/taskscope/internal/storage/io"
)

const maxBodyBytes = 1 << 20

type recordResponse struct {
	ID         string                `json:"id"`
	RecordedAt time.Time             `json:"recorded_at"`
	Display    printer.DisplayOutput `json:"display"`
}

type taskResponse struct {
	TaskID         string    `json:"task_id"`
	LastStatus     string    `json:"last_status"`
	Active         bool      `json:"active"`
	SnapshotCount  int       `json:"snapshot_count"`
	FirstRecorded  time.Time `json:"first_recorded_at"`
	LastRecordedAt time.Time `json:"last_recorded_at"`
}

type sanitizeResponse struct {
	Payload   any `json:"payload"`
	Masked    int `json:"masked"`
	Circular  int `json:"circular"`
	Truncated int `json:"truncated"`
}

type providerURLResponse struct {
	ProviderType string `json:"provider_type"`
	BaseURL      string `json:"base_url"`
	Resolved     bool   `json:"resolved"`
}

func (s *Server) handleRecordSnapshot(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var raw storageio.Snapshot
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if raw.TaskID != "" && raw.TaskID != taskID {
		writeError(w, http.StatusBadRequest, "invalid_input", "task_id does not match the URL")
		return
	}
	raw.TaskID = taskID

	snap, err := storageio.NormalizeSnapshot(raw, s.logger)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	recorded, err := s.record.Run(r.Context(), record.Request{Snapshots: []model.StatusSnapshot{snap}})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	rec := recorded[0]
	d := s.deriver.GetDisplay(rec.Snapshot.Status, rec.Snapshot.Progress, rec.Snapshot.ServerPhase)
	writeJSON(w, http.StatusCreated, recordResponse{
		ID:         rec.ID,
		RecordedAt: rec.RecordedAt.UTC(),
		Display:    printer.NewDisplayOutput(rec, d),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.repo.ListTasks(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskResponse{
			TaskID:         t.TaskID,
			LastStatus:     string(t.LastStatus),
			Active:         t.LastStatus.IsActive(),
			SnapshotCount:  t.SnapshotCount,
			FirstRecorded:  t.FirstRecorded.UTC(),
			LastRecordedAt: t.LastRecordedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteTask(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	res, err := s.display.Run(r.Context(), display.Request{TaskID: chi.URLParam(r, "taskID")})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, printer.NewDisplayOutput(res.Snapshot, res.Display))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be an integer")
			return
		}
		limit = n
	}

	res, err := s.timeline.Run(r.Context(), apptimeline.Request{
		TaskID: chi.URLParam(r, "taskID"),
		Limit:  limit,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, printer.NewTimelineOutput(res.State, res.Entries))
}

func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "could not read payload")
		return
	}

	res, err := s.sanitize.Run(r.Context(), appsanitize.Request{Data: data})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sanitizeResponse{
		Payload:   res.Value,
		Masked:    res.Report.Masked,
		Circular:  res.Report.Circular,
		Truncated: res.Report.Truncated,
	})
}

func (s *Server) handleProviderURL(w http.ResponseWriter, r *http.Request) {
	providerType := strings.TrimSpace(r.URL.Query().Get("provider_type"))
	if providerType == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "provider_type is required")
		return
	}

	u, ok := providerurl.ResolvedForDisplay(providerType, r.URL.Query().Get("base_url"))
	writeJSON(w, http.StatusOK, providerURLResponse{
		ProviderType: providerType,
		BaseURL:      u,
		Resolved:     ok,
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrNotValid):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, model.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	default:
		s.logger.Errorf("Request failed: %s", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"internal","message":"could not encode response"}}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
