package feed

import "sync"

// Key identifies one subscription slot.
type Key struct {
	Resource       string
	ConversationID string
}

// Registry tracks live subscriptions indexed by (resource, conversation).
// Adding to an occupied slot releases the previous handle first, so a
// double-subscribe structurally cannot leak a feed: at most one live
// subscription exists per key.
type Registry struct {
	mu   sync.Mutex
	subs map[Key]Subscription
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[Key]Subscription)}
}

// Add stores sub under key, releasing any subscription previously held there.
func (r *Registry) Add(key Key, sub Subscription) {
	r.mu.Lock()
	prev := r.subs[key]
	r.subs[key] = sub
	r.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
}

// Release frees the subscription under key, if any.
func (r *Registry) Release(key Key) {
	r.mu.Lock()
	sub := r.subs[key]
	delete(r.subs, key)
	r.mu.Unlock()

	if sub != nil {
		sub.Release()
	}
}

// ReleaseAll frees every tracked subscription. Used on conversation switch
// and engine shutdown; dangling handles would cause duplicate delivery on
// the next activation.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	subs := make([]Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.subs = make(map[Key]Subscription)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
