package sync

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/sahilt56/messaging-app/internal/event"
	"github.com/sahilt56/messaging-app/internal/model"
)

func TestReactionAggregatorApply(t *testing.T) {
	a := NewReactionAggregator(nil)

	r1 := model.Reaction{ID: "r1", MessageID: "m1", UserID: "u1", Emoji: "👍"}
	assert.Equal(t, "m1", a.Apply(event.ActionCreate, r1))

	groups := a.Groups("m1")
	assert.Equal(t, 1, len(groups))
	assert.Equal(t, 1, groups[0].Count)

	// a second create by the same user supersedes the first row
	r2 := model.Reaction{ID: "r2", MessageID: "m1", UserID: "u1", Emoji: "❤️"}
	assert.Equal(t, "m1", a.Apply(event.ActionCreate, r2))

	groups = a.Groups("m1")
	assert.Equal(t, 1, len(groups))
	assert.Equal(t, "❤️", groups[0].Emoji)

	// deleting a row that is already gone is a benign no-op
	assert.Equal(t, "", a.Apply(event.ActionDelete, r1))

	assert.Equal(t, "m1", a.Apply(event.ActionDelete, r2))
	assert.Equal(t, 0, len(a.Groups("m1")))

	// updates for unknown rows change nothing
	assert.Equal(t, "", a.Apply(event.ActionUpdate, r2))
}

func TestReactionAggregatorLoadAndDrop(t *testing.T) {
	a := NewReactionAggregator(func(id string) string { return "name-" + id })

	a.Load("m1", []model.Reaction{
		{ID: "r1", MessageID: "m1", UserID: "u1", Emoji: "👍"},
		{ID: "r2", MessageID: "m1", UserID: "u2", Emoji: "👍"},
	})

	groups := a.Groups("m1")
	assert.Equal(t, 1, len(groups))
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, []string{"name-u1", "name-u2"}, groups[0].ReactorNames)

	a.Drop("m1")
	assert.Equal(t, 0, len(a.Groups("m1")))
}
