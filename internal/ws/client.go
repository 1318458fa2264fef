package ws

import (
	"context"
	"time"

	"nhooyr.io/websocket"

	"chessmatch/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client represents one live websocket connection: one per user session
type Client struct {
	ID     string
	UserID model.UserID

	conn *websocket.Conn
	send chan []byte
}

// NewClient wraps an accepted connection
func NewClient(id string, userID model.UserID, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// trySend enqueues a message without blocking; reports false if the client's
// buffer is full
func (c *Client) trySend(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// writePump drains the send buffer to the connection until ctx is cancelled
// or a write fails
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
