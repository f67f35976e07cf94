package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/chatverse/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsConn serializes writes to a websocket. The first failed write cancels
// the connection's context so that work streaming into it stops.
type wsConn struct {
	conn    *websocket.Conn
	metrics *metrics.Metrics
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*wsConn, context.Context, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	ctx, cancel := context.WithCancel(r.Context())
	s.metrics.WSConnectionOpened()
	return &wsConn{conn: conn, metrics: s.metrics, cancel: cancel}, ctx, nil
}

// send writes v as a JSON text frame. frameType labels the metric.
func (c *wsConn) send(frameType string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.closed = true
		c.cancel()
		return err
	}
	c.metrics.RecordWSMessage("out", frameType)
	return nil
}

// read decodes the next client frame into v.
func (c *wsConn) read(v any) error {
	if err := c.conn.ReadJSON(v); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			slog.Debug("websocket read error", "error", err)
		}
		return err
	}
	c.metrics.RecordWSMessage("in", "request")
	return nil
}

func (c *wsConn) close() {
	c.cancel()
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	}
	c.mu.Unlock()
	c.conn.Close()
	c.metrics.WSConnectionClosed()
}
