package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/panel"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsCommand is a message sent by the page over the socket.
type wsCommand struct {
	Command string `json:"command"` // "refresh" or "apply"
}

// HandleSocket pushes a snapshot on connect and after every applied reading.
// The page may send {"command":"refresh"} or {"command":"apply"}.
func (h *Handlers) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Warn("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsub := h.Panel.Subscribe()
	defer unsub()

	go h.readSocket(ctx, cancel, conn)

	send := func(s panel.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(s); err != nil {
			debug.Verbose("web: websocket write: %v", err)
			return false
		}
		return true
	}

	if !send(h.Panel.Snapshot()) {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok || !send(s) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readSocket runs the commands sent by the page until the connection closes.
func (h *Handlers) readSocket(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		var msg wsCommand
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Command {
		case "refresh":
			if err := h.Panel.Poll(ctx); err != nil {
				debug.Verbose("web: refresh over websocket: %v", err)
			}
		case "apply":
			if _, err := h.Panel.Apply(ctx); err != nil {
				debug.Verbose("web: apply over websocket: %v", err)
			}
		default:
			debug.Verbose("web: unknown websocket command %q", msg.Command)
		}
	}
}
