package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type clientConn struct {
	rawConn *websocket.Conn
	userID  uuid.UUID
	mu      sync.Mutex
	once    sync.Once
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data) // Text/Binary only
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteJSON(v)
}

// ping may run concurrently with the writers.
func (c *clientConn) ping() error {
	return c.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *clientConn) close() {
	c.once.Do(func() { _ = c.rawConn.Close() })
}

// receives reports whether a frame addressed to userID goes to this socket.
// Broadcasts (no recipient) go to everyone in the room.
func (c *clientConn) receives(userID uuid.NullUUID) bool {
	return !userID.Valid || userID.UUID == c.userID
}
