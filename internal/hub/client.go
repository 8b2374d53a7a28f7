package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/event"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 4 * 1024               // max inbound control frame size
	sendBufSize        = 256                    // per-connection outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound frames
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound events
	kickOnFull         = true                   // when true, disconnect client when egress is full
	registerTimeout    = 5 * time.Second        // timeout for client registration
	unregisterTimeout  = 5 * time.Second        // timeout for client unregistration
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

// subKey identifies one feed subscription held by a client. An empty
// ConversationID subscribes to every conversation of the resource.
type subKey struct {
	Resource       string
	ConversationID string
}

// Client is one feed socket. It receives control frames (subscribe and
// unsubscribe) and pushes matching change events out.
type Client struct {
	ID      string
	userID  string
	conn    *websocket.Conn
	manager *Hub
	egress  chan event.ChangeEvent

	subs   map[subKey]bool
	subsMu sync.RWMutex

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

// RegisterClient creates a client for an upgraded connection and starts its
// pumps. Returns nil when the hub is too busy to accept it.
func RegisterClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		ID:         uuid.NewString(),
		userID:     userID,
		conn:       conn,
		manager:    h,
		egress:     make(chan event.ChangeEvent, sendBufSize),
		subs:       make(map[subKey]bool),
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}

	select {
	case h.register <- client:
		go client.ReadFrames()
		go client.WriteEvents()
		h.logger.Info("client registered",
			zap.String("client_id", client.ID),
			zap.String("user_id", userID),
		)
		return client
	case <-time.After(registerTimeout):
		h.logger.Warn("client registration timed out", zap.String("user_id", userID))
		cancel()
		conn.Close()
		return nil
	}
}

func (c *Client) ReadFrames() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-time.After(unregisterTimeout):
			c.manager.logger.Warn("unregister timed out", zap.String("client_id", c.ID))
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var frame event.ControlFrame

			if err := c.conn.ReadJSON(&frame); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.manager.logger.Info("client disconnected", zap.String("client_id", c.ID))
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					c.manager.logger.Warn("unexpected close",
						zap.String("client_id", c.ID),
						zap.Error(err),
					)
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.manager.logger.Info("client timed out", zap.String("client_id", c.ID))
					return
				}

				c.manager.logger.Warn("read error",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
				return
			}

			// Non-blocking handoff so a slow worker never stalls the reader.
			select {
			case c.manager.inbound <- inboundFrame{client: c, frame: frame}:
			case <-time.After(inboundSendTimeout):
				c.manager.logger.Warn("inbound queue full, dropping client", zap.String("client_id", c.ID))
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *Client) WriteEvents() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.egress:
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
					c.manager.logger.Debug("close write failed", zap.Error(err))
				}
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.manager.logger.Warn("event write failed",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.manager.logger.Warn("ping failed",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Subscribe adds a feed subscription for this client.
func (c *Client) Subscribe(resource, conversationID string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs[subKey{Resource: resource, ConversationID: conversationID}] = true
}

// Unsubscribe removes a feed subscription. Removing one that does not exist
// is harmless.
func (c *Client) Unsubscribe(resource, conversationID string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, subKey{Resource: resource, ConversationID: conversationID})
}

// Wants reports whether this client subscribed to the event's resource and
// conversation, either exactly or through a wildcard subscription.
func (c *Client) Wants(ev event.ChangeEvent) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	if c.subs[subKey{Resource: ev.Resource, ConversationID: ev.ConversationID}] {
		return true
	}
	return c.subs[subKey{Resource: ev.Resource}]
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()
		close(c.egress)

		// Wait for WriteEvents to close conn, or force close after timeout.
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				c.manager.logger.Warn("safety timeout, forced connection close", zap.String("client_id", c.ID))
			}
		}()
	})
}

// IsClosed returns true if the client has been closed.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// SafeSend attempts to enqueue an event for this client. Returns false if the
// client is closed or the egress stayed full past the timeout.
func (c *Client) SafeSend(ev event.ChangeEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(timeout):
		return false
	}
}
