package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"presence-service/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client wraps one websocket connection with a buffered outbound queue and an
// inbound rate limiter.
type Client struct {
	Info ConnInfo

	conn      *websocket.Conn
	send      chan []byte
	limiter   *rate.Limiter
	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient builds a client around an upgraded connection. eventsPerSecond
// bounds how fast inbound frames are accepted; excess frames are dropped.
func NewClient(conn *websocket.Conn, info ConnInfo, eventsPerSecond int) *Client {
	return &Client{
		Info:    info,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), eventsPerSecond*2),
		closed:  make(chan struct{}),
	}
}

// ID returns the opaque connection id.
func (c *Client) ID() string { return c.Info.ConnID }

// UserID returns the resolved user identifier.
func (c *Client) UserID() string { return c.Info.UserID }

// UserName returns the current display name.
func (c *Client) UserName() string { return c.Info.UserName }

// SetUserName updates the display name after a join event.
func (c *Client) SetUserName(name string) { c.Info.UserName = name }

// Send marshals and queues a push frame for this connection.
func (c *Client) Send(event string, payload any, ackID string) {
	data, err := json.Marshal(models.Push{Event: event, Payload: payload, AckID: ackID})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("marshal frame")
		return
	}
	c.enqueue(data)
}

// enqueue offers data to the send queue without blocking.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return true // silently dropped, connection is gone
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close shuts the connection down; safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// ReadPump reads frames from the websocket and hands them to onFrame until
// the connection dies, then calls onClose exactly once. Runs in its own
// goroutine. Returns the close reason for lifecycle reporting.
func (c *Client) ReadPump(onFrame func(*Client, models.Frame), onClose func(*Client)) string {
	var closeReason string
	defer func() {
		onClose(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.Info.ConnID, "user_id": c.Info.UserID})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logCtx.WithError(err).Warn("websocket read error")
			}
			return closeReason
		}

		if !c.limiter.Allow() {
			logCtx.Warn("event rate limit exceeded, dropping frame")
			continue
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logCtx.WithError(err).Debug("dropping malformed frame")
			continue
		}
		onFrame(c, frame)
	}
}

// WritePump flushes the send queue to the websocket and keeps the connection
// alive with pings. Runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
