package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/taskscope/taskscope/internal/app/watch"
	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/printer"
	"github.com/taskscope/taskscope/internal/timeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamMessage is a timeline stream update.
type StreamMessage struct {
	TaskID   string                 `json:"task_id"`
	Status   string                 `json:"status"`
	Phase    string                 `json:"phase"`
	LabelKey string                 `json:"label_key"`
	Icon     string                 `json:"icon"`
	Tone     string                 `json:"tone"`
	Timeline printer.TimelineOutput `json:"timeline"`
}

func newStreamMessage(u watch.Update) StreamMessage {
	return StreamMessage{
		TaskID:   u.State.SubjectID,
		Status:   string(u.Snapshot.Status),
		Phase:    string(u.Display.Phase),
		LabelKey: u.Display.LabelKey,
		Icon:     string(u.Display.Icon),
		Tone:     string(u.Display.Tone),
		Timeline: printer.NewTimelineOutput(u.State, u.State.Recent(timeline.DefaultRecentEntries)),
	}
}

// handleTimelineStream follows a task and streams every timeline update until the task
// finishes or the client goes away.
func (s *Server) handleTimelineStream(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	logger := s.logger.WithValues(log.Kv{"task-id": taskID})

	if _, err := s.repo.LatestSnapshot(r.Context(), taskID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warningf("Could not upgrade connection: %s", err)
		return
	}
	s.metrics.StreamConnections(1)
	defer s.metrics.StreamConnections(-1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := make(chan []byte, 16)
	go s.readPump(conn, cancel)

	var runErr error
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, runErr = s.watch.Run(ctx, watch.Request{
			TaskID: taskID,
			Poller: watch.NewRepositoryPoller(s.repo, taskID),
			OnUpdate: func(u watch.Update) {
				data, err := json.Marshal(newStreamMessage(u))
				if err != nil {
					logger.Errorf("Could not marshal stream message: %s", err)
					return
				}
				select {
				case send <- data:
				case <-ctx.Done():
				}
			},
		})
	}()

	s.writePump(conn, send, finished)
	cancel()
	<-finished

	if runErr != nil && !watch.IsStopped(runErr) {
		logger.Errorf("Timeline stream failed: %s", runErr)
	}
}

// writePump writes the messages to the connection and pings the client until the watch
// is finished, then flushes the pending messages and closes the connection.
func (s *Server) writePump(conn *websocket.Conn, send <-chan []byte, finished <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case msg := <-send:
			if err := write(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-finished:
			// No more updates are sent once the watch has finished.
			for {
				select {
				case msg := <-send:
					if err := write(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"))
					return
				}
			}

		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and cancels the stream once the client goes away.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
