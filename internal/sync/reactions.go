package sync

import (
	"github.com/sahilt56/messaging-app/internal/event"
	"github.com/sahilt56/messaging-app/internal/model"
)

// ReactionAggregator holds the raw reaction rows for the active
// conversation's messages and derives grouped summaries from them. Like the
// reconciler it has a single writer, the engine loop.
type ReactionAggregator struct {
	rows   map[string][]model.Reaction // keyed by message id
	nameOf NameResolver
}

func NewReactionAggregator(nameOf NameResolver) *ReactionAggregator {
	return &ReactionAggregator{
		rows:   make(map[string][]model.Reaction),
		nameOf: nameOf,
	}
}

// Load replaces the rows for one message, used on initial render.
func (a *ReactionAggregator) Load(messageID string, rows []model.Reaction) {
	a.rows[messageID] = append([]model.Reaction(nil), rows...)
}

// Apply folds one reaction change event into the rows and returns the
// affected message id, or "" when the event changed nothing.
func (a *ReactionAggregator) Apply(action string, rc model.Reaction) string {
	switch action {
	case event.ActionCreate:
		// Enforce one reaction per (message, user): a create supersedes any
		// prior row by the same user rather than erroring, healing state
		// desynced by older clients.
		rows := a.rows[rc.MessageID][:0]
		for _, r := range a.rows[rc.MessageID] {
			if r.UserID != rc.UserID {
				rows = append(rows, r)
			}
		}
		a.rows[rc.MessageID] = append(rows, rc)
		return rc.MessageID

	case event.ActionUpdate:
		rows := a.rows[rc.MessageID]
		for i := range rows {
			if rows[i].ID == rc.ID {
				rows[i] = rc
				return rc.MessageID
			}
		}
		return ""

	case event.ActionDelete:
		rows := a.rows[rc.MessageID]
		for i := range rows {
			if rows[i].ID == rc.ID {
				a.rows[rc.MessageID] = append(rows[:i], rows[i+1:]...)
				return rc.MessageID
			}
		}
		// Already gone; the row was removed by a cascade or an earlier
		// event. Not an error.
		return ""
	}
	return ""
}

// Drop discards the rows of a deleted message.
func (a *ReactionAggregator) Drop(messageID string) {
	delete(a.rows, messageID)
}

// Groups returns the grouped summary for one message.
func (a *ReactionAggregator) Groups(messageID string) []model.GroupedReaction {
	return model.GroupReactions(a.rows[messageID], a.nameOf)
}

// Reset drops all state, used on conversation deselect.
func (a *ReactionAggregator) Reset() {
	a.rows = make(map[string][]model.Reaction)
}
