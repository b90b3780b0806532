package realtime

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the fronting proxy
		return true
	},
}

// Client is one live transport connection. Its id is the ConnectionId the
// registry and liveness monitor key their stale-entry checks on; a new
// connection for the same user always gets a new id.
type Client struct {
	id     string
	userID uint
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte

	closed int32 // atomic flag: connection torn down
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		id:     uuid.New().String(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// ForceClose signals the connection shut without waiting for the peer. Safe
// to call from any goroutine and more than once; the read pump notices the
// closed transport and runs the normal disconnect path.
func (c *Client) ForceClose() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	if c.conn != nil {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced or evicted"))
		c.conn.Close()
	}
	slog.Debug("Client force-closed", "connectionID", c.id, "userID", c.userID)
}

// SendEvent enqueues an event for delivery. Best-effort: a full buffer or a
// closed connection drops the event and reports ErrClientDisconnected.
func (c *Client) SendEvent(ev *Event) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		slog.Warn("Send buffer full, dropping event", "connectionID", c.id, "userID", c.userID, "event", ev.Event)
		return ErrClientDisconnected
	}
}

func (c *Client) sendError(code, message string) {
	c.SendEvent(NewErrorEvent(code, message))
}

// readPump delivers inbound events to the hub one at a time, so two handlers
// for the same connection never interleave. Events from other connections run
// concurrently on their own pumps.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		if c.conn != nil {
			c.conn.Close()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// A pong is proof of life, same as an explicit heartbeat
		c.hub.liveness.Touch(c.userID)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "connectionID", c.id, "userID", c.userID, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "connectionID", c.id, "userID", c.userID, "error", err)
			}
			break
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			slog.Debug("Ignoring malformed event", "connectionID", c.id, "userID", c.userID, "error", err)
			c.sendError("INVALID_EVENT", "invalid event format")
			continue
		}
		if err := ev.Validate(); err != nil {
			slog.Debug("Ignoring invalid event", "connectionID", c.id, "userID", c.userID, "error", err)
			continue
		}
		if !ev.Event.IsClientEvent() {
			slog.Debug("Ignoring server-only event from client", "connectionID", c.id, "userID", c.userID, "event", ev.Event)
			continue
		}

		c.hub.dispatch(c, &ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ForceClose()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Error writing message", "connectionID", c.id, "userID", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "connectionID", c.id, "userID", c.userID, "error", err)
				return
			}
		}
	}
}

// ServeWS upgrades the request and starts the connection pumps. The userID
// comes from the already-validated auth token; the registry entry is only
// created once the client sends its setup event.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "userID", userID, "error", err)
		return
	}

	client := NewClient(hub, conn, userID)
	slog.Info("New WebSocket connection established", "connectionID", client.id, "userID", userID)

	go client.writePump()
	go client.readPump()
}
