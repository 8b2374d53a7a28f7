package hub

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/event"
)

type inboundFrame struct {
	frame  event.ControlFrame
	client *Client
}

// Hub fans change events out to feed sockets. Repositories publish into it
// through the event.Sink interface; each connected client receives the events
// matching its subscription set.
type Hub struct {
	clients    map[*Client]bool
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make(chan inboundFrame, 4096), // buffer for burst handling
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}

	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return origins[origin]
		},
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}

					h.handleFrame(in.frame, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) handleFrame(frame event.ControlFrame, c *Client) {
	switch frame.Op {
	case event.OpSubscribe:
		c.Subscribe(frame.Resource, frame.ConversationID)
		h.logger.Debug("subscribed",
			zap.String("client_id", c.ID),
			zap.String("resource", frame.Resource),
			zap.String("conversation_id", frame.ConversationID),
		)
	case event.OpUnsubscribe:
		c.Unsubscribe(frame.Resource, frame.ConversationID)
		h.logger.Debug("unsubscribed",
			zap.String("client_id", c.ID),
			zap.String("resource", frame.Resource),
			zap.String("conversation_id", frame.ConversationID),
		)
	default:
		h.logger.Warn("unknown control op",
			zap.String("client_id", c.ID),
			zap.String("op", frame.Op),
		)
	}
}

// Publish delivers a change event to every client subscribed to it. It
// implements event.Sink.
func (h *Hub) Publish(ev event.ChangeEvent) {
	// collect recipients while holding RLock
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.Wants(ev) {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	// deliver without holding the lock
	for _, c := range recipients {
		if c.SafeSend(ev, sendTimeout) {
			continue
		}
		h.logger.Warn("egress full",
			zap.String("client_id", c.ID),
			zap.String("resource", ev.Resource),
		)
		if kickOnFull {
			select {
			case h.unregister <- c:
			default:
			}
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[c]; exists {
		delete(h.clients, c)
		c.Close()
		h.logger.Info("client removed", zap.String("client_id", c.ID))
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()

	h.mu.RLock()
	for c := range h.clients {
		c.Close()
	}
	h.mu.RUnlock()

	close(h.inbound)
	h.wg.Wait()
}

// ClientCount reports the number of connected feed sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request into a feed socket for the given user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(userID, conn, h)
}
