package sync

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/sahilt56/messaging-app/internal/model"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testMsg(id, sender string, offset time.Duration) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: "c1",
		Sender:         &sender,
		Content:        "msg " + id,
		CreatedAt:      testEpoch.Add(offset),
	}
}

func ids(views []model.MessageView) []string {
	out := make([]string, len(views))
	for i := range views {
		out[i] = views[i].ID
	}
	return out
}

func TestReconcilerSnapshotOrdering(t *testing.T) {
	r := NewReconciler(nil, nil)

	// out-of-order input with a duplicate
	r.LoadSnapshot([]model.Message{
		testMsg("c", "u1", 2*time.Second),
		testMsg("a", "u1", 0),
		testMsg("b", "u2", time.Second),
		testMsg("a", "u1", 0),
	})

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"a", "b", "c"}, ids(r.Messages()))
}

func TestReconcilerPushedCreateSortsIn(t *testing.T) {
	r := NewReconciler(nil, nil)
	r.LoadSnapshot([]model.Message{
		testMsg("a", "u1", 0),
		testMsg("c", "u1", 3*time.Second),
	})

	// a pushed event with an intermediate timestamp lands in the middle
	assert.Equal(t, true, r.ApplyCreate(testMsg("b", "u2", 2*time.Second)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(r.Messages()))

	// same id again: echo dedup, no change
	assert.Equal(t, false, r.ApplyCreate(testMsg("b", "u2", 2*time.Second)))
	assert.Equal(t, 3, r.Len())
}

func TestReconcilerUpdatePreservesReactions(t *testing.T) {
	r := NewReconciler(nil, nil)
	r.LoadSnapshot([]model.Message{testMsg("a", "u1", 0)})
	r.SetReactions("a", []model.GroupedReaction{{Emoji: "👍", Count: 1}})

	edited := testMsg("a", "u1", 0)
	edited.Content = "edited"
	assert.Equal(t, true, r.ApplyUpdate(edited))

	view, ok := r.Get("a")
	assert.Equal(t, true, ok)
	assert.Equal(t, "edited", view.Content)
	assert.Equal(t, 1, len(view.Reactions))

	// updates never resurrect unknown ids
	assert.Equal(t, false, r.ApplyUpdate(testMsg("ghost", "u1", 0)))
}

func TestReconcilerDelete(t *testing.T) {
	r := NewReconciler(nil, nil)
	r.LoadSnapshot([]model.Message{
		testMsg("a", "u1", 0),
		testMsg("b", "u2", time.Second),
	})

	assert.Equal(t, true, r.ApplyDelete("a"))
	assert.Equal(t, []string{"b"}, ids(r.Messages()))

	// deleting an absent id is a silent no-op
	assert.Equal(t, false, r.ApplyDelete("a"))
	assert.Equal(t, 1, r.Len())
}

func TestReconcilerReplySnippets(t *testing.T) {
	names := map[string]string{"u1": "Alice"}
	r := NewReconciler(nil, func(id string) string { return names[id] })

	target := testMsg("a", "u1", 0)
	reply := testMsg("b", "u2", time.Second)
	reply.ReplyTo = "a"
	r.LoadSnapshot([]model.Message{target, reply})

	view, _ := r.Get("b")
	assert.NotEqual(t, view.Reply, nil)
	assert.Equal(t, true, view.Reply.Available)
	assert.Equal(t, "Alice", view.Reply.SenderName)
	assert.Equal(t, "msg a", view.Reply.Preview)

	// deleting the target re-dangles the snippet
	r.ApplyDelete("a")
	view, _ = r.Get("b")
	assert.Equal(t, false, view.Reply.Available)
	assert.Equal(t, model.ReplyUnavailable, view.Reply.Preview)

	// and a late-arriving target resolves it again
	r.ApplyCreate(target)
	view, _ = r.Get("b")
	assert.Equal(t, true, view.Reply.Available)
	assert.Equal(t, "msg a", view.Reply.Preview)
}

func TestReconcilerSnapshotsAreIsolated(t *testing.T) {
	names := map[string]string{"u1": "Alice"}
	r := NewReconciler(nil, func(id string) string { return names[id] })

	target := testMsg("a", "u1", 0)
	reply := testMsg("b", "u2", time.Second)
	reply.ReplyTo = "a"
	r.LoadSnapshot([]model.Message{target, reply})

	before := r.Messages()
	r.ApplyDelete("a")

	// views handed out earlier keep the resolved snippet
	assert.Equal(t, true, before[1].Reply.Available)
	assert.Equal(t, "msg a", before[1].Reply.Preview)

	// while the live state dangles it
	view, _ := r.Get("b")
	assert.Equal(t, false, view.Reply.Available)
	assert.Equal(t, model.ReplyUnavailable, view.Reply.Preview)
}

func TestReconcilerReadTransitions(t *testing.T) {
	r := NewReconciler(nil, nil)
	r.LoadSnapshot([]model.Message{
		testMsg("a", "me", 0),
		testMsg("b", "peer", 1*time.Second),
		testMsg("c", "peer", 2*time.Second),
		testMsg("d", "me", 3*time.Second),
		testMsg("e", "peer", 4*time.Second),
	})

	assert.Equal(t, 3, r.UnreadCount("me"))

	// the batch transition flips only inbound messages
	assert.Equal(t, 3, r.MarkReadLocal("me"))
	assert.Equal(t, 0, r.UnreadCount("me"))

	// the caller's own messages keep their read flag untouched
	for _, id := range []string{"a", "d"} {
		view, _ := r.Get(id)
		assert.Equal(t, false, view.Read)
	}

	// second call is idempotent
	assert.Equal(t, 0, r.MarkReadLocal("me"))
}

func TestReconcilerAttachmentResolution(t *testing.T) {
	resolve := func(msg *model.Message) string { return "https://files/" + msg.ID + "/" + msg.Attachment }
	r := NewReconciler(resolve, nil)

	withFile := testMsg("a", "u1", 0)
	withFile.Attachment = "photo.png"
	r.LoadSnapshot([]model.Message{withFile, testMsg("b", "u1", time.Second)})

	view, _ := r.Get("a")
	assert.Equal(t, "https://files/a/photo.png", view.AttachmentURL)
	view, _ = r.Get("b")
	assert.Equal(t, "", view.AttachmentURL)
}
