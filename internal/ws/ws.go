// Package ws exposes the real-time alert channel: each accepted websocket
// connection becomes one subscriber session in the broadcast registry. The
// channel is receive-only for clients; inbound frames are read solely to
// detect disconnects.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"reliefnet/internal/broadcast"
	"reliefnet/internal/metrics"
)

type Handler struct {
	registry   *broadcast.Registry
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewHandler(registry *broadcast.Registry, sendBuffer int) *Handler {
	return &Handler{
		registry:   registry,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		sendBuffer: sendBuffer,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/alerts", h.serveAlerts)
}

func (h *Handler) serveAlerts(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", c.Request.RemoteAddr, "error", err)
		return
	}

	sess := broadcast.NewSession(wsConn{conn}, h.sendBuffer, func(s *broadcast.Session) {
		h.registry.Unregister(s)
		metrics.Subscribers.Dec()
		slog.Info("subscriber disconnected", "session_id", s.ID())
	})
	h.registry.Register(sess)
	metrics.Subscribers.Inc()
	slog.Info("subscriber connected", "session_id", sess.ID(), "remote", conn.RemoteAddr().String())

	conn.SetCloseHandler(func(code int, text string) error {
		sess.BeginClosing()
		msg := websocket.FormatCloseMessage(code, "")
		return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	go sess.WritePump()

	// Read loop exists only to observe the connection dying; any read error
	// (graceful close frame or abrupt failure) terminates the session.
	defer sess.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsConn adapts *websocket.Conn to the session's transport interface.
type wsConn struct {
	conn *websocket.Conn
}

func (w wsConn) Write(payload []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w wsConn) Close() error {
	return w.conn.Close()
}
