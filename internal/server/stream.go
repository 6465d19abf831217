package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket timings
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers on other origins authenticate with ?access_token, so the
	// origin check adds nothing over the bearer check.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is one frame of the log stream.
type wsMessage struct {
	Type  string `json:"type"`
	Entry any    `json:"entry,omitempty"`
	Task  any    `json:"task,omitempty"`
}

// handleTaskLogWS streams the task log over a WebSocket. Each log entry is
// sent as {"type":"log","entry":...}; a final {"type":"end","task":...}
// precedes a normal close.
func (s *Server) handleTaskLogWS(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	after, err := replayCursor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	// Validate before upgrading so errors are plain HTTP responses.
	if _, err := s.controller.GetTask(ctx, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "task_id", id, "error", err)
		return
	}
	defer conn.Close()

	entries, err := s.controller.StreamLog(ctx, id, after)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
			time.Now().Add(wsWriteWait))
		return
	}

	// The reader only handles pongs and notices the client going away.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case entry, open := <-entries:
			if !open {
				s.closeStream(conn, r, id)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsMessage{Type: "log", Entry: entry}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) closeStream(conn *websocket.Conn, r *http.Request, id uuid.UUID) {
	msg := wsMessage{Type: "end"}
	if task, err := s.controller.GetTask(r.Context(), id); err == nil {
		msg.Task = task
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteJSON(msg)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"),
		time.Now().Add(wsWriteWait))
}
