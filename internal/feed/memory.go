package feed

import (
	"sync"

	"github.com/sahilt56/messaging-app/internal/event"
)

// MemoryFeed is an in-process Feed and event.Sink. The reference server uses
// it to bridge repo-published changes to engines running in the same
// process, and tests use it to drive the engine deterministically.
type MemoryFeed struct {
	mu   sync.Mutex
	next int
	subs map[int]*memorySub
}

type memorySub struct {
	id             int
	resource       string
	conversationID string
	handler        Handler
	feed           *MemoryFeed
	once           sync.Once
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]*memorySub)}
}

func (f *MemoryFeed) Subscribe(resource, conversationID string, h Handler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	sub := &memorySub{
		id:             f.next,
		resource:       resource,
		conversationID: conversationID,
		handler:        h,
		feed:           f,
	}
	f.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers ev synchronously to every matching subscription.
func (f *MemoryFeed) Publish(ev event.ChangeEvent) {
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

// SubscriberCount returns the number of live subscriptions.
func (f *MemoryFeed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (s *memorySub) Release() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
	})
}
