package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sermoncast/internal/logging"
	"sermoncast/internal/workflow"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleJobEvents streams progress events for one job over a websocket. The
// stored job state is sent first; the connection closes after the terminal
// event.
func (s *apiServer) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	// Subscribe before reading the job so a terminal event published in
	// between is either queued on events or already visible in item.
	hub := s.daemon.workflow.Hub()
	events, cancel := hub.Subscribe(id)
	defer cancel()

	item, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()
	logger := s.logger.With(logging.JobID(id))

	snapshot := workflow.EventFromItem(item)
	if _, cached := hub.Last(id); !cached || item.IsTerminal() {
		if err := s.writeEvent(conn, snapshot); err != nil || snapshot.Terminal() {
			s.closeSocket(conn)
			return
		}
	}

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case event := <-events:
			if err := s.writeEvent(conn, event); err != nil {
				logger.Debug("websocket write failed", logging.Error(err))
				return
			}
			if event.Terminal() {
				s.closeSocket(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-clientGone:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (s *apiServer) writeEvent(conn *websocket.Conn, event workflow.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}

func (s *apiServer) closeSocket(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(wsWriteWait))
}
