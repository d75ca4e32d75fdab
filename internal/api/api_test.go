package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscope/taskscope/internal/api"
	"github.com/taskscope/taskscope/internal/metrics"
	"github.com/taskscope/taskscope/internal/phase"
	"github.com/taskscope/taskscope/internal/storage/memory"
)

func newServer(t *testing.T, cfg api.ServerConfig) *api.Server {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	cfg.Repository = repo
	cfg.Deriver = phase.NewDeriver(phase.DeriverConfig{})
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}

	srv, err := api.NewServer(cfg)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func recordTask(t *testing.T, h http.Handler, taskID string) {
	t.Helper()

	bodies := []string{
		`{"status":"PENDING","updated_at":"2024-05-01T10:00:00Z"}`,
		`{"status":"RUNNING","phase":"booting_executor","updated_at":"2024-05-01T10:00:05Z"}`,
		`{"status":"COMPLETED","progress":100,"updated_at":"2024-05-01T10:00:30Z","completed_at":"2024-05-01T10:00:30Z","debug":{"api_key":"sk-1234567890abcdef","note":"done"}}`,
	}
	for _, b := range bodies {
		rec := do(t, h, http.MethodPost, "/v1/tasks/"+taskID+"/snapshots", b)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestServerTaskFlow(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := newServer(t, api.ServerConfig{})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/v1/tasks/t1/snapshots", `{"status":"RUNNING","progress":35}`)
	require.Equal(http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(body["id"])
	display := body["display"].(map[string]any)
	assert.Equal("executing", display["phase"])
	assert.Equal(float64(35), display["progress"])
	assert.Equal(false, display["show_progress"])

	recordTask(t, h, "t2")

	// Display.
	rec = do(t, h, http.MethodGet, "/v1/tasks/t2/display", "")
	require.Equal(http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal("t2", body["task_id"])
	assert.Equal("COMPLETED", body["status"])
	assert.Equal("completed", body["phase"])
	assert.Equal("chat:messages.phase_completed", body["label_key"])
	assert.Equal("check", body["icon"])
	assert.Equal("success", body["tone"])
	assert.Equal(map[string]any{"api_key": "sk-1...cdef (len=19)", "note": "done"}, body["debug"])

	// Timeline.
	rec = do(t, h, http.MethodGet, "/v1/tasks/t2/timeline", "")
	require.Equal(http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(true, body["terminal"])
	assert.Equal("2024-05-01T10:00:30Z", body["now"])
	entries := body["entries"].([]any)
	require.Len(entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal("queued", first["id"])
	assert.Equal(float64(5), first["elapsed_seconds"])
	second := entries[1].(map[string]any)
	assert.Equal("booting_executor", second["id"])
	assert.Equal(float64(25), second["elapsed_seconds"])

	rec = do(t, h, http.MethodGet, "/v1/tasks/t2/timeline?limit=1", "")
	require.Equal(http.StatusOK, rec.Code)
	assert.Len(decode(t, rec)["entries"], 1)

	// Tasks.
	rec = do(t, h, http.MethodGet, "/v1/tasks", "")
	require.Equal(http.StatusOK, rec.Code)
	var tasks []map[string]any
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(tasks, 2)
	byID := map[string]map[string]any{}
	for _, tk := range tasks {
		byID[tk["task_id"].(string)] = tk
	}
	assert.Equal("RUNNING", byID["t1"]["last_status"])
	assert.Equal(true, byID["t1"]["active"])
	assert.Equal("COMPLETED", byID["t2"]["last_status"])
	assert.Equal(false, byID["t2"]["active"])
	assert.Equal(float64(3), byID["t2"]["snapshot_count"])

	// Delete.
	rec = do(t, h, http.MethodDelete, "/v1/tasks/t2", "")
	assert.Equal(http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/v1/tasks/t2/display", "")
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestServerErrors(t *testing.T) {
	tests := map[string]struct {
		method  string
		path    string
		body    string
		expCode int
		expErr  string
	}{
		"Displaying a missing task should fail with not found.": {
			method:  http.MethodGet,
			path:    "/v1/tasks/missing/display",
			expCode: http.StatusNotFound,
			expErr:  "not_found",
		},

		"Getting the timeline of a missing task should fail with not found.": {
			method:  http.MethodGet,
			path:    "/v1/tasks/missing/timeline",
			expCode: http.StatusNotFound,
			expErr:  "not_found",
		},

		"Deleting a missing task should fail with not found.": {
			method:  http.MethodDelete,
			path:    "/v1/tasks/missing",
			expCode: http.StatusNotFound,
			expErr:  "not_found",
		},

		"Streaming a missing task should fail with not found.": {
			method:  http.MethodGet,
			path:    "/v1/tasks/missing/timeline/ws",
			expCode: http.StatusNotFound,
			expErr:  "not_found",
		},

		"Recording invalid JSON should fail.": {
			method:  http.MethodPost,
			path:    "/v1/tasks/t1/snapshots",
			body:    `{"status":`,
			expCode: http.StatusBadRequest,
			expErr:  "invalid_json",
		},

		"Recording a snapshot of another task should fail.": {
			method:  http.MethodPost,
			path:    "/v1/tasks/t1/snapshots",
			body:    `{"task_id":"t2","status":"RUNNING"}`,
			expCode: http.StatusBadRequest,
			expErr:  "invalid_input",
		},

		"Recording a snapshot with an invalid time should fail.": {
			method:  http.MethodPost,
			path:    "/v1/tasks/t1/snapshots",
			body:    `{"status":"RUNNING","updated_at":"yesterday"}`,
			expCode: http.StatusBadRequest,
			expErr:  "invalid_input",
		},

		"A non numeric timeline limit should fail.": {
			method:  http.MethodGet,
			path:    "/v1/tasks/t1/timeline?limit=abc",
			expCode: http.StatusBadRequest,
			expErr:  "invalid_input",
		},

		"Sanitizing an empty payload should fail.": {
			method:  http.MethodPost,
			path:    "/v1/debug/sanitize",
			expCode: http.StatusBadRequest,
			expErr:  "invalid_input",
		},

		"Resolving a provider URL without provider should fail.": {
			method:  http.MethodGet,
			path:    "/v1/provider-url",
			expCode: http.StatusBadRequest,
			expErr:  "invalid_input",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			srv := newServer(t, api.ServerConfig{})
			rec := do(t, srv.Handler(), test.method, test.path, test.body)

			assert.Equal(test.expCode, rec.Code)
			body := decode(t, rec)
			errBody, ok := body["error"].(map[string]any)
			if assert.True(ok) {
				assert.Equal(test.expErr, errBody["code"])
			}
		})
	}
}

func TestServerSanitize(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := newServer(t, api.ServerConfig{})
	payload := `{"headers":{"Authorization":"Bearer abcdefghijklmnop"},"message":"use sk-1234567890abcdef","n":1}`
	rec := do(t, srv.Handler(), http.MethodPost, "/v1/debug/sanitize", payload)
	require.Equal(http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(map[string]any{
		"headers": map[string]any{"Authorization": "Bear...mnop (len=23)"},
		"message": "use sk-1234567890abcdef",
		"n":       float64(1),
	}, body["payload"])
	assert.Equal(float64(1), body["masked"])
	assert.Equal(float64(0), body["circular"])
	assert.Equal(float64(0), body["truncated"])
}

func TestServerProviderURL(t *testing.T) {
	tests := map[string]struct {
		query       string
		expURL      string
		expResolved bool
	}{
		"An OpenAI provider without base URL should resolve to its default.": {
			query:       "provider_type=openai",
			expURL:      "https://api.openai.com/v1",
			expResolved: true,
		},

		"A custom OpenAI compatible base URL should get the version suffix.": {
			query:       "provider_type=openai&base_url=https://llm.example.com/",
			expURL:      "https://llm.example.com/v1",
			expResolved: true,
		},

		"An unknown provider without base URL should not resolve.": {
			query:       "provider_type=unknown",
			expURL:      "",
			expResolved: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			srv := newServer(t, api.ServerConfig{})
			rec := do(t, srv.Handler(), http.MethodGet, "/v1/provider-url?"+test.query, "")
			assert.Equal(http.StatusOK, rec.Code)

			body := decode(t, rec)
			assert.Equal(test.expURL, body["base_url"])
			assert.Equal(test.expResolved, body["resolved"])
		})
	}
}

func TestServerAuth(t *testing.T) {
	tests := map[string]struct {
		path    string
		headers []string
		expCode int
	}{
		"A request without token should be rejected.": {
			path:    "/v1/tasks",
			expCode: http.StatusUnauthorized,
		},

		"A request with a wrong bearer token should be rejected.": {
			path:    "/v1/tasks",
			headers: []string{"Authorization", "Bearer nope"},
			expCode: http.StatusUnauthorized,
		},

		"A request with the bearer token should be accepted.": {
			path:    "/v1/tasks",
			headers: []string{"Authorization", "Bearer s3cr3t"},
			expCode: http.StatusOK,
		},

		"A request with the query token should be accepted.": {
			path:    "/v1/tasks?token=s3cr3t",
			expCode: http.StatusOK,
		},

		"The health check should not require a token.": {
			path:    "/healthz",
			expCode: http.StatusOK,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, api.ServerConfig{AuthToken: "s3cr3t"})
			rec := do(t, srv.Handler(), http.MethodGet, test.path, "", test.headers...)
			assert.Equal(t, test.expCode, rec.Code)
		})
	}
}

func TestServerMetrics(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	prom := metrics.NewPrometheus()
	srv := newServer(t, api.ServerConfig{Metrics: prom, MetricsHandler: prom.Handler()})
	h := srv.Handler()

	recordTask(t, h, "t1")
	do(t, h, http.MethodGet, "/v1/tasks/t1/display", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(out, `taskscope_snapshots_recorded_total{status="COMPLETED"} 1`)
	assert.Contains(out, `taskscope_http_requests_total{method="POST",route="/v1/tasks/{taskID}/snapshots",status="201"} 3`)
	assert.Contains(out, `taskscope_http_requests_total{method="GET",route="/v1/tasks/{taskID}/display",status="200"} 1`)
}

func TestServerTimelineStream(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := newServer(t, api.ServerConfig{})
	recordTask(t, srv.Handler(), "t1")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/tasks/t1/timeline/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(err)
	defer conn.Close()
	assert.Equal(http.StatusSwitchingProtocols, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msgs []api.StreamMessage
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %s", err)
			break
		}
		var msg api.StreamMessage
		require.NoError(json.Unmarshal(data, &msg))
		msgs = append(msgs, msg)
	}

	require.NotEmpty(msgs)
	last := msgs[len(msgs)-1]
	assert.Equal("t1", last.TaskID)
	assert.Equal("COMPLETED", last.Status)
	assert.Equal("completed", last.Phase)
	assert.True(last.Timeline.Terminal)
	require.Len(last.Timeline.Entries, 2)
	assert.Equal("queued", last.Timeline.Entries[0].ID)
	assert.Equal("booting_executor", last.Timeline.Entries[1].ID)
}

func TestServerTimelineStreamFollowsTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := newServer(t, api.ServerConfig{})
	h := srv.Handler()
	rec := do(t, h, http.MethodPost, "/v1/tasks/t1/snapshots", `{"status":"RUNNING","phase":"executing","updated_at":"2024-05-01T10:00:00Z"}`)
	require.Equal(http.StatusCreated, rec.Code)

	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/tasks/t1/timeline/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first api.StreamMessage
	_, data, err := conn.ReadMessage()
	require.NoError(err)
	require.NoError(json.Unmarshal(data, &first))
	assert.Equal("RUNNING", first.Status)
	assert.False(first.Timeline.Terminal)

	rec = do(t, h, http.MethodPost, "/v1/tasks/t1/snapshots", `{"status":"FAILED","error_message":"boom","updated_at":"2024-05-01T10:00:10Z"}`)
	require.Equal(http.StatusCreated, rec.Code)

	var msgs []api.StreamMessage
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %s", err)
			break
		}
		var msg api.StreamMessage
		require.NoError(json.Unmarshal(data, &msg))
		msgs = append(msgs, msg)
	}

	// The terminal update is the last one.
	require.NotEmpty(msgs)
	last := msgs[len(msgs)-1]
	assert.True(last.Timeline.Terminal)
	assert.Equal("FAILED", last.Status)
	assert.Equal("2024-05-01T10:00:10Z", last.Timeline.Now.Format(time.RFC3339))
	for _, m := range msgs[:len(msgs)-1] {
		assert.False(m.Timeline.Terminal)
	}
}

func TestServerSanitizeNonFiniteNumbers(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := newServer(t, api.ServerConfig{})
	rec := do(t, srv.Handler(), http.MethodPost, "/v1/debug/sanitize", "ratio: .nan\nlimit: -.inf\napi_key: sk-1234567890abcdef\n")
	require.Equal(http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(map[string]any{
		"ratio":   nil,
		"limit":   nil,
		"api_key": "sk-1...cdef (len=19)",
	}, body["payload"])
	assert.Equal(float64(1), body["masked"])
}
