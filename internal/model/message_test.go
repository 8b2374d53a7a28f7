package model

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-playground/assert/v2"
)

func strPtr(s string) *string { return &s }

func TestMessageOrdering(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := Message{ID: "a", CreatedAt: t0}
	b := Message{ID: "b", CreatedAt: t0.Add(time.Second)}
	assert.Equal(t, true, a.Before(&b))
	assert.Equal(t, false, b.Before(&a))

	// same instant: id breaks the tie
	c := Message{ID: "c", CreatedAt: t0}
	assert.Equal(t, true, a.Before(&c))
	assert.Equal(t, false, c.Before(&a))
}

func TestMessageSender(t *testing.T) {
	system := Message{IsSystemMessage: true}
	assert.Equal(t, "", system.SenderID())
	assert.Equal(t, false, system.SentBy("u1"))

	msg := Message{Sender: strPtr("u1")}
	assert.Equal(t, "u1", msg.SenderID())
	assert.Equal(t, true, msg.SentBy("u1"))
	assert.Equal(t, false, msg.SentBy("u2"))
}

func TestMessagePreview(t *testing.T) {
	assert.Equal(t, "hello", (&Message{Content: "hello"}).Preview())
	assert.Equal(t, "Code Snippet", (&Message{IsCodeSnippet: true}).Preview())
	assert.Equal(t, "photo.png", (&Message{Attachment: "photo.png"}).Preview())
	// content wins over the code flag
	assert.Equal(t, "x := 1", (&Message{Content: "x := 1", IsCodeSnippet: true}).Preview())
}

func TestSnippetTruncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	snip := SnippetOf(&Message{ID: "m1", Content: long}, "Alice")
	assert.Equal(t, 80, len(snip.Preview))
	assert.Equal(t, true, snip.Available)

	// the cut lands on a rune boundary even for multibyte content
	snip = SnippetOf(&Message{ID: "m2", Content: strings.Repeat("é", 100)}, "Alice")
	assert.Equal(t, true, utf8.ValidString(snip.Preview))
	assert.Equal(t, 80, len(snip.Preview))

	snip = SnippetOf(&Message{ID: "m3", Content: strings.Repeat("語", 50)}, "Alice")
	assert.Equal(t, true, utf8.ValidString(snip.Preview))
}

func TestConversationRules(t *testing.T) {
	direct := Conversation{Participants: []string{"u1", "u2"}}
	assert.Equal(t, true, direct.HasParticipant("u1"))
	assert.Equal(t, false, direct.HasParticipant("u3"))
	assert.Equal(t, "u2", direct.OtherParticipant("u1"))
	assert.Equal(t, false, direct.IsAdmin("u1"))
	assert.Equal(t, true, direct.CanPost("u1"))

	group := Conversation{
		IsGroup:      true,
		Participants: []string{"u1", "u2", "u3"},
		GroupAdmin:   "u1",
	}
	assert.Equal(t, true, group.IsAdmin("u1"))
	assert.Equal(t, false, group.IsAdmin("u2"))
	assert.Equal(t, "", group.OtherParticipant("u1"))

	// everyone can post until the admin locks the group
	assert.Equal(t, true, group.CanPost("u2"))
	group.AdminOnlyChat = true
	assert.Equal(t, true, group.CanPost("u1"))
	assert.Equal(t, false, group.CanPost("u2"))
}
