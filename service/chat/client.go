package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"socialchat/logger"
)

// Client is one authenticated WebSocket connection. A user may hold several.
// All writes go through Send and a single writer goroutine.
type Client struct {
	ConnID    string
	UserID    string
	WS        *websocket.Conn
	CreatedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	// mirrored is closed once the online presence mirror has finished.
	mirrored chan struct{}
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID:    connID,
		UserID:    userID,
		WS:        ws,
		CreatedAt: time.Now(),
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		mirrored:  make(chan struct{}),
	}
}

// Enqueue hands a frame to the writer without blocking. It reports false
// when the queue is full or the client is closing.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// EnqueueWait blocks up to wait for queue room. Acks use it so the caller
// learns its outcome even under a burst of broadcasts.
func (c *Client) EnqueueWait(frame []byte, wait time.Duration) bool {
	if c.Enqueue(frame) {
		return true
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	case <-t.C:
		return false
	}
}

// Close stops the writer, which then sends a close frame and closes the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump owns all writes to the socket: queued frames first, pings on
// the interval. It closes the socket on exit, which also ends the read loop.
func (c *Client) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WS.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.WS.Close()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Info("[WS] write failed", zap.String("conn", c.ConnID), zap.String("user", c.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.WS.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				logger.Info("[WS] ping failed", zap.String("conn", c.ConnID), zap.String("user", c.UserID), zap.Error(err))
				return
			}
		case <-c.done:
			c.drain(writeWait)
			return
		}
	}
}

// drain flushes frames queued before Close, best effort.
func (c *Client) drain(writeWait time.Duration) {
	for {
		select {
		case payload := <-c.send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}
