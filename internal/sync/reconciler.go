// Package sync is the realtime conversation-synchronization core: it merges
// snapshot loads and server-pushed change events into a single consistent,
// ordered view of the active conversation.
package sync

import (
	"sort"

	"github.com/sahilt56/messaging-app/internal/model"
)

// AttachmentResolver derives a fetchable URL for a message's attachment
// reference. Messages without an attachment get no URL.
type AttachmentResolver func(msg *model.Message) string

// NameResolver maps a user id to a display name, "" when unknown.
type NameResolver func(userID string) string

// Reconciler maintains the ordered, deduplicated message sequence for one
// conversation. It is not safe for concurrent use; the engine's event loop
// is its single writer.
type Reconciler struct {
	order   []*model.MessageView // ascending by creation time
	byID    map[string]*model.MessageView
	resolve AttachmentResolver
	nameOf  NameResolver
}

func NewReconciler(resolve AttachmentResolver, nameOf NameResolver) *Reconciler {
	return &Reconciler{
		byID:    make(map[string]*model.MessageView),
		resolve: resolve,
		nameOf:  nameOf,
	}
}

// LoadSnapshot replaces the sequence with a full history fetch. Duplicate
// ids in the input collapse to their first occurrence.
func (r *Reconciler) LoadSnapshot(msgs []model.Message) {
	r.order = r.order[:0]
	r.byID = make(map[string]*model.MessageView, len(msgs))

	for i := range msgs {
		if _, seen := r.byID[msgs[i].ID]; seen {
			continue
		}
		view := r.annotate(msgs[i])
		r.byID[view.ID] = view
		r.order = append(r.order, view)
	}

	sort.Slice(r.order, func(i, j int) bool {
		return r.order[i].Message.Before(&r.order[j].Message)
	})
	r.resolveReplies()
}

// ApplyCreate inserts a pushed or locally-echoed message at its sorted
// position. A message whose id is already present is ignored: the same
// message can arrive through both an optimistic echo and the feed, and the
// id, not reference identity, is the dedup key. Reports whether the
// sequence changed.
func (r *Reconciler) ApplyCreate(msg model.Message) bool {
	if _, exists := r.byID[msg.ID]; exists {
		return false
	}

	view := r.annotate(msg)
	r.byID[view.ID] = view

	// Sorted insert, not append: pushed events can arrive slightly out of
	// creation order.
	i := sort.Search(len(r.order), func(i int) bool {
		return view.Message.Before(&r.order[i].Message)
	})
	r.order = append(r.order, nil)
	copy(r.order[i+1:], r.order[i:])
	r.order[i] = view

	// A previously dangling reply may now resolve.
	r.resolveReplies()
	return true
}

// ApplyUpdate replaces the entity by id, preserving its reactions. Updates
// for ids not present are dropped: an update must not resurrect a message
// that was deleted or never loaded.
func (r *Reconciler) ApplyUpdate(msg model.Message) bool {
	view, ok := r.byID[msg.ID]
	if !ok {
		return false
	}
	reactions := view.Reactions
	*view = *r.annotate(msg)
	view.Reactions = reactions
	return true
}

// ApplyDelete removes the entity by id. An absent id is a silent no-op and
// counts as success: the message is already gone, typically because a
// cascading delete on the parent raced this event.
func (r *Reconciler) ApplyDelete(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)

	for i, view := range r.order {
		if view.ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	// Replies quoting the deleted message fall back to the neutral snippet.
	// Reassigned, never mutated through the pointer: snapshots already
	// handed out hold the old snippet.
	for _, view := range r.order {
		if view.Reply != nil && view.Reply.MessageID == id {
			view.Reply = model.DanglingSnippet(id)
		}
	}
	return true
}

// SetReactions installs the grouped reaction summary for a message. Merging
// reactions never perturbs message ordering. Reports whether the message is
// known.
func (r *Reconciler) SetReactions(messageID string, groups []model.GroupedReaction) bool {
	view, ok := r.byID[messageID]
	if !ok {
		return false
	}
	view.Reactions = groups
	return true
}

// MarkReadLocal flips read=true on every message not sent by userID,
// mirroring the backend batch transition. The user's own messages keep
// their read flag untouched. Returns the number of messages transitioned.
func (r *Reconciler) MarkReadLocal(userID string) int {
	n := 0
	for _, view := range r.order {
		if view.Read || view.SentBy(userID) {
			continue
		}
		view.Read = true
		n++
	}
	return n
}

// UnreadCount counts messages not sent by userID with read=false.
func (r *Reconciler) UnreadCount(userID string) int {
	n := 0
	for _, view := range r.order {
		if !view.Read && !view.SentBy(userID) {
			n++
		}
	}
	return n
}

// Get returns the view for a message id.
func (r *Reconciler) Get(id string) (*model.MessageView, bool) {
	view, ok := r.byID[id]
	return view, ok
}

// Len returns the number of messages held.
func (r *Reconciler) Len() int {
	return len(r.order)
}

// Messages returns a copy of the ordered sequence. The views are copied by
// value and the reply snippet is copied too, so consumers never observe
// in-place mutation.
func (r *Reconciler) Messages() []model.MessageView {
	out := make([]model.MessageView, len(r.order))
	for i, view := range r.order {
		out[i] = *view
		if view.Reply != nil {
			snippet := *view.Reply
			out[i].Reply = &snippet
		}
	}
	return out
}

// Reset drops all state, used on conversation deselect.
func (r *Reconciler) Reset() {
	r.order = nil
	r.byID = make(map[string]*model.MessageView)
}

func (r *Reconciler) annotate(msg model.Message) *model.MessageView {
	view := &model.MessageView{Message: msg}
	if msg.Attachment != "" && r.resolve != nil {
		view.AttachmentURL = r.resolve(&msg)
	}
	if msg.ReplyTo != "" {
		view.Reply = r.snippetFor(msg.ReplyTo)
	}
	return view
}

func (r *Reconciler) snippetFor(targetID string) *model.ReplySnippet {
	target, ok := r.byID[targetID]
	if !ok {
		return model.DanglingSnippet(targetID)
	}
	name := ""
	if r.nameOf != nil {
		name = r.nameOf(target.SenderID())
	}
	return model.SnippetOf(&target.Message, name)
}

func (r *Reconciler) resolveReplies() {
	for _, view := range r.order {
		if view.Reply == nil || view.Reply.Available {
			continue
		}
		if _, ok := r.byID[view.Reply.MessageID]; ok {
			view.Reply = r.snippetFor(view.Reply.MessageID)
		}
	}
}
