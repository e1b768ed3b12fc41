package observer

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single websocket frame write, independent of
// the Hub's own per-observer send timeout (belt-and-suspenders against
// a connection that accepts bytes but never ACKs at the TCP level).
const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The control API and its websocket observers are same-origin in
	// every deployment this engine ships for; CheckOrigin is permissive
	// because auth, if any, happens at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSink adapts a *websocket.Conn to the Sink interface.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(payload []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Upgrade upgrades r into a websocket connection, subscribes it to hub
// under id, and blocks reading (and discarding) inbound frames until
// the connection closes — gorilla/websocket requires a reader loop to
// process control frames (ping/pong/close) even when the protocol is
// otherwise one-way. Returns once the connection is gone; the caller's
// handler should treat this as "request complete".
func Upgrade(hub *Hub, id string, w http.ResponseWriter, r *http.Request, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	hub.Subscribe(id, &wsSink{conn: conn})
	defer hub.Unsubscribe(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logger.Debug("observer: websocket connection closed", "observer", id, "error", err)
			return nil
		}
	}
}
