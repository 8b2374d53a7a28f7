package model

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestPlanReactionToggle(t *testing.T) {
	// no existing rows: create
	plan := PlanReactionToggle(nil, "m1", "u1", "👍")
	assert.Equal(t, ReactionCreated, plan.Action)
	assert.Equal(t, 0, len(plan.Deletes))
	assert.NotEqual(t, plan.Create, nil)
	assert.Equal(t, "👍", plan.Create.Emoji)

	// same emoji toggles off
	existing := []Reaction{{ID: "r1", MessageID: "m1", UserID: "u1", Emoji: "👍"}}
	plan = PlanReactionToggle(existing, "m1", "u1", "👍")
	assert.Equal(t, ReactionDeleted, plan.Action)
	assert.Equal(t, []string{"r1"}, plan.Deletes)
	assert.Equal(t, plan.Create, nil)

	// different emoji replaces
	plan = PlanReactionToggle(existing, "m1", "u1", "❤️")
	assert.Equal(t, ReactionCreated, plan.Action)
	assert.Equal(t, []string{"r1"}, plan.Deletes)
	assert.Equal(t, "❤️", plan.Create.Emoji)

	// rows by other users or messages are never touched
	mixed := []Reaction{
		{ID: "r1", MessageID: "m1", UserID: "u2", Emoji: "👍"},
		{ID: "r2", MessageID: "m2", UserID: "u1", Emoji: "👍"},
	}
	plan = PlanReactionToggle(mixed, "m1", "u1", "👍")
	assert.Equal(t, ReactionCreated, plan.Action)
	assert.Equal(t, 0, len(plan.Deletes))
}

func TestPlanReactionToggleSelfHeals(t *testing.T) {
	// duplicate rows by the same user all go away on the next toggle
	existing := []Reaction{
		{ID: "r1", MessageID: "m1", UserID: "u1", Emoji: "👍"},
		{ID: "r2", MessageID: "m1", UserID: "u1", Emoji: "😀"},
	}

	plan := PlanReactionToggle(existing, "m1", "u1", "🎉")
	assert.Equal(t, ReactionCreated, plan.Action)
	assert.Equal(t, []string{"r1", "r2"}, plan.Deletes)

	// toggling an emoji present among the duplicates removes everything
	plan = PlanReactionToggle(existing, "m1", "u1", "👍")
	assert.Equal(t, ReactionDeleted, plan.Action)
	assert.Equal(t, []string{"r1", "r2"}, plan.Deletes)
	assert.Equal(t, plan.Create, nil)
}

func TestGroupReactions(t *testing.T) {
	names := map[string]string{"u1": "Alice", "u2": "Bob"}
	nameOf := func(id string) string { return names[id] }

	rows := []Reaction{
		{ID: "r1", MessageID: "m1", UserID: "u1", Emoji: "👍"},
		{ID: "r2", MessageID: "m1", UserID: "u2", Emoji: "❤️"},
		{ID: "r3", MessageID: "m1", UserID: "u3", Emoji: "👍"},
	}

	groups := GroupReactions(rows, nameOf)
	assert.Equal(t, 2, len(groups))

	// first-occurrence order
	assert.Equal(t, "👍", groups[0].Emoji)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, []string{"Alice", "Unknown"}, groups[0].ReactorNames)
	assert.Equal(t, []string{"u1", "u3"}, groups[0].ReactorIDs)

	assert.Equal(t, "❤️", groups[1].Emoji)
	assert.Equal(t, 1, groups[1].Count)

	// counts always sum to the number of rows
	total := 0
	for _, g := range groups {
		total += g.Count
	}
	assert.Equal(t, len(rows), total)

	assert.Equal(t, 0, len(GroupReactions(nil, nameOf)))
}
