package room

import (
	"sync"
	"time"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// wsConn is the subset of *websocket.Conn the connection manager needs,
// grounded on the teacher's transport.wsConnection interface — it exists
// so tests can inject a fake socket instead of a real network connection.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Connection is one live client socket (one connection handle per spec
// §3), owned by the Connection Manager and weakly referenced from its
// room's member set.
type Connection struct {
	conn     wsConn
	RoomID   types.RoomIDType
	Identity types.Identity

	send         chan []byte
	pingInterval time.Duration

	mu           sync.Mutex
	lastActivity time.Time
	awaitingPong bool

	closeOnce sync.Once
	closed    chan struct{}
}

// newConnection builds a Connection. pingInterval drives writePump's own
// protocol-level keepalive ticker; it is independent of the JSON-level
// ping envelope enqueued by the heartbeat monitor.
func newConnection(conn wsConn, roomID types.RoomIDType, identity types.Identity, pingInterval time.Duration) *Connection {
	return &Connection{
		conn:         conn,
		RoomID:       roomID,
		Identity:     identity,
		send:         make(chan []byte, 256),
		pingInterval: pingInterval,
		lastActivity: time.Now(),
		closed:       make(chan struct{}),
	}
}

// TouchActivity records inbound activity, refreshing last_activity_ts.
func (c *Connection) TouchActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// LastActivity returns the last recorded inbound-activity time.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// SetAwaitingPong sets the pending-pong flag.
func (c *Connection) SetAwaitingPong(v bool) {
	c.mu.Lock()
	c.awaitingPong = v
	c.mu.Unlock()
}

// AwaitingPong reports whether a liveness ping is outstanding.
func (c *Connection) AwaitingPong() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingPong
}

// Enqueue queues data for delivery on the connection's write pump. It
// never blocks: a full queue drops the message and logs, satisfying the
// per-connection write-serialization guarantee without letting one slow
// reader stall the room (spec §5 "per-connection write queue").
func (c *Connection) Enqueue(data []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		logging.Warn(nil, "connection send queue full, dropping message", zap.String("user_id", string(c.Identity.Sub)))
	}
}

// writePump serializes all writes to the underlying socket: application
// frames off the send channel and the protocol-level keepalive ping are
// both written here, never from another goroutine, since gorilla/websocket
// requires a single writer (spec §5, "writes ... do not interleave frame
// bytes").
func (c *Connection) writePump() {
	defer c.conn.Close()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if c.pingInterval > 0 {
		ticker = time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-tick:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Terminate force-closes the connection. Idempotent: on termination (any
// cause) the underlying socket is closed exactly once.
func (c *Connection) Terminate() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}
