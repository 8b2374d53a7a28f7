package feed

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/event"
)

var (
	// tuning parameters
	wsWriteWait      = 10 * time.Second    // time allowed to write a frame to the server
	wsPongWait       = 20 * time.Second    // time allowed to read the next pong
	wsPingInterval   = (wsPongWait * 9) / 10 // send pings with this period
	wsControlBufSize = 64                  // outbound control-frame buffer
	wsDialTimeout    = 10 * time.Second
)

// WSFeed is a Feed backed by the server's websocket change-feed endpoint.
// One socket carries every subscription of this client; subscribe and
// unsubscribe are control frames, inbound traffic is ChangeEvent frames.
//
// A dropped socket is surfaced once through Done and is not reconnected
// here; the owner re-dials on the next activation.
type WSFeed struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu   sync.Mutex
	next int
	subs map[int]*wsSub

	control chan event.ControlFrame
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

type wsSub struct {
	id             int
	resource       string
	conversationID string
	handler        Handler
	feed           *WSFeed
	once           sync.Once
}

// DialWS connects to the feed endpoint and starts the read/write pumps.
func DialWS(ctx context.Context, url string, logger *zap.Logger) (*WSFeed, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsDialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	fctx, cancel := context.WithCancel(context.Background())
	f := &WSFeed{
		conn:    conn,
		logger:  logger,
		subs:    make(map[int]*wsSub),
		control: make(chan event.ControlFrame, wsControlBufSize),
		done:    make(chan struct{}),
		ctx:     fctx,
		cancel:  cancel,
	}

	go f.readPump()
	go f.writePump()

	return f, nil
}

func (f *WSFeed) Subscribe(resource, conversationID string, h Handler) (Subscription, error) {
	f.mu.Lock()
	f.next++
	sub := &wsSub{
		id:             f.next,
		resource:       resource,
		conversationID: conversationID,
		handler:        h,
		feed:           f,
	}
	f.subs[sub.id] = sub
	f.mu.Unlock()

	f.send(event.ControlFrame{
		Op:             event.OpSubscribe,
		Resource:       resource,
		ConversationID: conversationID,
	})
	return sub, nil
}

// Done is closed when the socket dies. No events arrive afterwards.
func (f *WSFeed) Done() <-chan struct{} {
	return f.done
}

// Close tears the socket down and drops every subscription.
func (f *WSFeed) Close() {
	f.once.Do(func() {
		f.cancel()
		_ = f.conn.Close()
		close(f.done)
	})
}

func (f *WSFeed) send(frame event.ControlFrame) {
	select {
	case f.control <- frame:
	case <-f.ctx.Done():
	}
}

func (f *WSFeed) dispatch(ev event.ChangeEvent) {
	f.mu.Lock()
	handlers := make([]Handler, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.resource != ev.Resource {
			continue
		}
		if sub.conversationID != "" && sub.conversationID != ev.ConversationID {
			continue
		}
		handlers = append(handlers, sub.handler)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (f *WSFeed) readPump() {
	defer f.Close()

	f.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	f.conn.SetPongHandler(func(string) error {
		return f.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var ev event.ChangeEvent
		if err := f.conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				f.logger.Info("feed closed by server")
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				f.logger.Warn("feed timed out")
				return
			}
			select {
			case <-f.ctx.Done():
				// closed locally
			default:
				f.logger.Error("feed read failed", zap.Error(err))
			}
			return
		}

		f.dispatch(ev)
	}
}

func (f *WSFeed) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		f.Close()
	}()

	for {
		select {
		case <-f.ctx.Done():
			return
		case frame := <-f.control:
			f.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := f.conn.WriteJSON(frame); err != nil {
				f.logger.Error("feed control write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				f.logger.Warn("feed ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *wsSub) Release() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()

		s.feed.send(event.ControlFrame{
			Op:             event.OpUnsubscribe,
			Resource:       s.resource,
			ConversationID: s.conversationID,
		})
	})
}
