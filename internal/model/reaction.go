package model

// Reaction represents a single reaction row. At most one row exists per
// (message, user) pair; selecting a new emoji replaces the old row.
type Reaction struct {
	ID        string `json:"id" bson:"_id,omitempty"`
	MessageID string `json:"message" bson:"message_id"`
	UserID    string `json:"user" bson:"user_id"`
	Emoji     string `json:"emoji" bson:"emoji"`
}

// GroupedReaction aggregates reaction rows by emoji for display.
type GroupedReaction struct {
	Emoji        string   `json:"emoji"`
	Count        int      `json:"count"`
	ReactorNames []string `json:"reactorNames"`
	ReactorIDs   []string `json:"reactorIds"`
}

// Reaction toggle outcomes.
const (
	ReactionCreated = "created"
	ReactionDeleted = "deleted"
)

// TogglePlan describes how a set of reaction rows must change when a user
// toggles an emoji on a message. Deletes are applied before Create.
type TogglePlan struct {
	Action  string     // ReactionCreated or ReactionDeleted
	Deletes []string   // ids of rows to remove
	Create  *Reaction  // new row, nil when Action is ReactionDeleted
}

// PlanReactionToggle computes the row changes for a reaction toggle given
// the user's existing rows on the message. Toggling the same emoji removes
// it; toggling a different emoji replaces every prior row by this user, so
// the one-reaction-per-user invariant self-heals even if duplicate rows
// slipped in earlier.
func PlanReactionToggle(existing []Reaction, messageID, userID, emoji string) TogglePlan {
	var plan TogglePlan
	same := false
	for _, r := range existing {
		if r.UserID != userID || r.MessageID != messageID {
			continue
		}
		plan.Deletes = append(plan.Deletes, r.ID)
		if r.Emoji == emoji {
			same = true
		}
	}
	if same {
		plan.Action = ReactionDeleted
		return plan
	}
	plan.Action = ReactionCreated
	plan.Create = &Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	return plan
}

// GroupReactions aggregates reaction rows by emoji, ordered by first
// occurrence of each emoji in the input. nameOf maps a user id to a display
// name and may be nil. Pure: the input is never modified.
func GroupReactions(rows []Reaction, nameOf func(userID string) string) []GroupedReaction {
	if len(rows) == 0 {
		return nil
	}

	index := make(map[string]int, len(rows))
	groups := make([]GroupedReaction, 0, len(rows))
	for _, r := range rows {
		if r.Emoji == "" {
			continue
		}
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, GroupedReaction{Emoji: r.Emoji})
		}
		name := ""
		if nameOf != nil {
			name = nameOf(r.UserID)
		}
		if name == "" {
			name = "Unknown"
		}
		groups[i].Count++
		groups[i].ReactorNames = append(groups[i].ReactorNames, name)
		groups[i].ReactorIDs = append(groups[i].ReactorIDs, r.UserID)
	}
	return groups
}
