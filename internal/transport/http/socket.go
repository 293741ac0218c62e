// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/metrics"
)

const socketWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy belongs to the deployment's edge, not this process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socketFrame is what goes over the wire. The channel label is echoed back
// verbatim when the client supplied one, so a multiplexing client can route
// frames without inspecting the event body.
type socketFrame struct {
	Channel string       `json:"channel,omitempty"`
	Event   domain.Event `json:"event"`
}

func serveSocket(w http.ResponseWriter, r *http.Request, subscriber EventSubscriber, logger *slog.Logger, heartbeat time.Duration, target streamTarget) {
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("websocket upgrade failed", "topic", target.topic, "error", err)
		return
	}
	defer conn.Close()

	writeFrame := func(ev domain.Event) error {
		payload, err := json.Marshal(socketFrame{Channel: channel, Event: ev})
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	if ev, done := target.terminalSnapshotEvent(); done {
		if err := writeFrame(ev); err != nil {
			logger.Warn("websocket snapshot write failed", "topic", target.topic, "error", err)
		}
		closeSocket(conn)
		return
	}

	sub := subscriber.Subscribe(target.topic, streamBuffer)
	defer subscriber.Unsubscribe(sub)

	metrics.IncStreamConnections("websocket")
	defer metrics.DecStreamConnections("websocket")

	logger.Debug("websocket stream opened", "topic", target.topic, "channel", channel)

	// Drain the client side so close frames and pongs are processed. Any
	// read error means the peer is gone.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		conn.SetReadLimit(1024)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			closeSocket(conn)
			return
		case <-readClosed:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("websocket ping failed", "topic", target.topic, "error", err)
				return
			}
		case ev, open := <-sub.C:
			if !open {
				closeSocket(conn)
				return
			}
			if err := writeFrame(ev); err != nil {
				logger.Debug("websocket event write failed", "topic", target.topic, "error", err)
				return
			}
			if target.stopOnTerminal && ev.TerminalForWorkflow() {
				closeSocket(conn)
				return
			}
		}
	}
}

func closeSocket(conn *websocket.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
