package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/pulse/internal/daemon/hub"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// DroppedEvent is the SSE event name sent before the server closes a stream
// whose subscriber fell behind. Clients reconnect and receive a full snapshot.
const DroppedEvent = "dropped"

// CloseDropped is the websocket close code for a dropped subscriber.
const CloseDropped = websocket.CloseTryAgainLater

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	// The socket is local and mode 0600; any origin that can reach it is
	// already the owning user.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
}

// handleStreamState provides Server-Sent Events (SSE) for real-time state updates.
// The first event is the full current snapshot; every later event is a newer
// snapshot version.
func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		unavailable(w, "hub")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.deps.Hub.Subscribe()
	defer s.deps.Hub.Unsubscribe(sub)
	log := s.logger.WithFields(logrus.Fields{"subscriber": sub.ID(), "client": r.UserAgent()})

	// Send initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	log.Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Debug("SSE client disconnected")
			return
		case snap, ok := <-sub.C():
			if !ok {
				if sub.Dropped() {
					fmt.Fprintf(w, "event: %s\ndata: {\"last_sent\":%d}\n\n", DroppedEvent, sub.LastSent())
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				log.WithError(err).Error("Failed to marshal snapshot")
				continue
			}
			// SSE format: "id: <version>\ndata: {json}\n\n"
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", snap.Version, data)
			flusher.Flush()
			// SSE has no upstream channel; a flushed write counts as delivered.
			sub.Ack(snap.Version)
		}
	}
}

// handleWebSocket streams snapshots as JSON text messages. The client may
// send {"type":"ack","version":N} to report progress, which feeds the
// subscriber's lag.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		unavailable(w, "hub")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("Failed to upgrade the websocket")
		return
	}
	defer ws.Close()

	sub := s.deps.Hub.Subscribe()
	defer s.deps.Hub.Unsubscribe(sub)
	log := s.logger.WithFields(logrus.Fields{"subscriber": sub.ID(), "client": r.UserAgent()})
	log.Debug("Websocket client connected")

	readDone := make(chan struct{})
	go s.readAcks(ws, sub, log, readDone)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			log.Debug("Websocket client disconnected")
			return
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case snap, ok := <-sub.C():
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				code, reason := websocket.CloseNormalClosure, "hub closed"
				if sub.Dropped() {
					code, reason = CloseDropped, "subscriber dropped"
				}
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			if err := ws.WriteJSON(snap); err != nil {
				log.WithError(err).Debug("Failed to write websocket snapshot")
				return
			}
		}
	}
}

func (s *Server) readAcks(ws *websocket.Conn, sub *hub.Subscriber, log *logrus.Entry, done chan<- struct{}) {
	defer close(done)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var msg models.AckMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		if msg.Type != "ack" {
			log.WithField("type", msg.Type).Debug("Ignoring websocket message")
			continue
		}
		sub.Ack(msg.Version)
	}
}
