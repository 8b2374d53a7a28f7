// Package feed is the change-feed client: a thin abstraction over a
// push-based subscribe/unsubscribe primitive per logical resource, plus the
// registry that makes subscription lifecycles explicit handle objects
// instead of caller-supplied cleanup closures.
package feed

import "github.com/sahilt56/messaging-app/internal/event"

// Handler receives change events for one subscription. Handlers are invoked
// from the feed's delivery goroutine and must not block.
type Handler func(ev event.ChangeEvent)

// Subscription is a live (resource, conversation) stream. Release stops
// delivery and frees the underlying handle; releasing twice is harmless.
type Subscription interface {
	Release()
}

// Feed opens change-event subscriptions. conversationID filters delivery to
// one conversation; an empty conversationID subscribes to every event of the
// resource the server will route to this client.
type Feed interface {
	Subscribe(resource, conversationID string, h Handler) (Subscription, error)
}
