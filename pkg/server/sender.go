package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-pano/pkg/metrics"
	"github.com/teslashibe/go-pano/pkg/protocol"
)

// connSender writes protocol messages to one websocket. Writes from the
// session and from the ping responder are serialized.
type connSender struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	framing protocol.Framing
	timeout time.Duration
	metrics *metrics.Metrics
}

// Send implements session.Sender.
func (w *connSender) Send(ctx context.Context, msg *protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := protocol.Encode(msg, w.framing)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("server: write %s: %w", msg.Type, err)
	}

	if w.metrics != nil {
		w.metrics.MessageSent(msg.Type)
	}
	return nil
}

// close sends a normal close frame.
func (w *connSender) close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
