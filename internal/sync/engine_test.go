package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/event"
	"github.com/sahilt56/messaging-app/internal/feed"
	"github.com/sahilt56/messaging-app/internal/model"
	"github.com/sahilt56/messaging-app/internal/store"
)

// fakeStore is an in-memory store.Store that publishes change events the way
// the reference server does, so an engine wired to it behaves like a real
// client session.
type fakeStore struct {
	mu            sync.Mutex
	sink          event.Sink
	messages      map[string][]model.Message
	reactions     map[string][]model.Reaction
	conversations map[string]*model.Conversation
	users         map[string]*model.User

	readCalls  []string // "conversationID/userID"
	fetchGates map[string]chan struct{}
}

func newFakeStore(sink event.Sink) *fakeStore {
	return &fakeStore{
		sink:          sink,
		messages:      make(map[string][]model.Message),
		reactions:     make(map[string][]model.Reaction),
		conversations: make(map[string]*model.Conversation),
		users:         make(map[string]*model.User),
		fetchGates:    make(map[string]chan struct{}),
	}
}

func (f *fakeStore) FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	f.mu.Lock()
	gate := f.fetchGates[conversationID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	f.mu.Lock()
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], msg)
	f.mu.Unlock()

	f.sink.Publish(event.NewChange(event.ResourceMessages, event.ActionCreate, msg.ConversationID, msg))
	return msg, nil
}

func (f *fakeStore) DeleteMessage(ctx context.Context, id string) error {
	f.mu.Lock()
	var deleted *model.Message
	for convID, msgs := range f.messages {
		for i := range msgs {
			if msgs[i].ID == id {
				m := msgs[i]
				deleted = &m
				f.messages[convID] = append(msgs[:i], msgs[i+1:]...)
				break
			}
		}
	}
	f.mu.Unlock()

	if deleted != nil {
		f.sink.Publish(event.NewChange(event.ResourceMessages, event.ActionDelete, deleted.ConversationID, *deleted))
	}
	return nil
}

func (f *fakeStore) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, conversationID+"/"+userID)
	return nil
}

func (f *fakeStore) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ClearHistory(ctx context.Context, conversationID string) error { return nil }

func (f *fakeStore) FetchReactions(ctx context.Context, messageID string) ([]model.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Reaction(nil), f.reactions[messageID]...), nil
}

func (f *fakeStore) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (store.ToggleResult, error) {
	f.mu.Lock()
	existing := append([]model.Reaction(nil), f.reactions[messageID]...)
	f.mu.Unlock()

	plan := model.PlanReactionToggle(existing, messageID, userID, emoji)
	conversationID := ""
	f.mu.Lock()
	for convID, msgs := range f.messages {
		for i := range msgs {
			if msgs[i].ID == messageID {
				conversationID = convID
			}
		}
	}
	rows := f.reactions[messageID][:0]
	for _, r := range f.reactions[messageID] {
		keep := true
		for _, id := range plan.Deletes {
			if r.ID == id {
				keep = false
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}
	var created *model.Reaction
	if plan.Create != nil {
		rc := *plan.Create
		rc.ID = "r-" + messageID + "-" + userID
		rows = append(rows, rc)
		created = &rc
	}
	f.reactions[messageID] = rows
	f.mu.Unlock()

	for _, r := range existing {
		for _, id := range plan.Deletes {
			if r.ID == id {
				f.sink.Publish(event.NewChange(event.ResourceReactions, event.ActionDelete, conversationID, r))
			}
		}
	}
	if created != nil {
		f.sink.Publish(event.NewChange(event.ResourceReactions, event.ActionCreate, conversationID, *created))
	}
	return store.ToggleResult{Action: plan.Action, Reaction: created}, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.conversations[id]; ok {
		c := *conv
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) FetchConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return nil, nil
}

func (f *fakeStore) FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeStore) CreateDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeStore) CreateGroup(ctx context.Context, name string, participants []string, adminID string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeStore) UpdateSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error {
	return nil
}

func (f *fakeStore) AddParticipant(ctx context.Context, conversationID, userID string) error {
	return nil
}

func (f *fakeStore) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	return nil
}

func (f *fakeStore) LeaveGroup(ctx context.Context, conversationID, userID string) error { return nil }

func (f *fakeStore) TransferAdmin(ctx context.Context, conversationID, byUserID, newAdminID string) error {
	return nil
}

func (f *fakeStore) DeleteConversation(ctx context.Context, conversationID, byUserID string) error {
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) Heartbeat(ctx context.Context, userID string) error { return nil }

func (f *fakeStore) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	return nil
}

func (f *fakeStore) seedConversation(id string, participants ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[id] = &model.Conversation{ID: id, Participants: participants}
	for _, p := range participants {
		f.users[p] = &model.User{ID: p, Name: "name-" + p}
	}
}

func (f *fakeStore) seedMessage(conversationID, id, sender string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[conversationID] = append(f.messages[conversationID], model.Message{
		ID:             id,
		ConversationID: conversationID,
		Sender:         &sender,
		Content:        "msg " + id,
		CreatedAt:      at,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore, *feed.MemoryFeed) {
	t.Helper()
	mf := feed.NewMemoryFeed()
	st := newFakeStore(mf)
	e := NewEngine(Config{
		UserID: "me",
		Store:  st,
		Feed:   mf,
		Logger: zap.NewNop(),
	})
	t.Cleanup(e.Stop)
	return e, st, mf
}

func TestEngineLoadsSnapshot(t *testing.T) {
	e, st, mf := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")
	st.seedMessage("c1", "a", "peer", testEpoch)
	st.seedMessage("c1", "b", "me", testEpoch.Add(time.Second))

	e.SelectConversation("c1")
	waitFor(t, func() bool {
		s := e.Snapshot()
		return s.ConversationID == "c1" && !s.Loading && len(s.Messages) == 2
	})

	s := e.Snapshot()
	assert.Equal(t, []string{"a", "b"}, ids(s.Messages))
	// inbound messages were marked read on open
	assert.Equal(t, 0, s.Unread)
	waitFor(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return len(st.readCalls) == 1 && st.readCalls[0] == "c1/me"
	})

	// feeds opened after the load: messages, reactions, typing, conversation
	assert.Equal(t, 4, mf.SubscriberCount())

	// selecting the active conversation again is a no-op
	e.SelectConversation("c1")
	waitFor(t, func() bool { return !e.Snapshot().Loading })
	assert.Equal(t, 4, mf.SubscriberCount())
}

func TestEngineOptimisticEchoDedup(t *testing.T) {
	e, st, _ := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")

	e.SelectConversation("c1")
	waitFor(t, func() bool { return !e.Snapshot().Loading })

	e.SendMessage("hello", SendOptions{})

	// the echo is visible immediately and the feed's create event for the
	// same id must not duplicate it
	waitFor(t, func() bool {
		st.mu.Lock()
		n := len(st.messages["c1"])
		st.mu.Unlock()
		return n == 1
	})
	waitFor(t, func() bool { return len(e.Snapshot().Messages) == 1 })

	s := e.Snapshot()
	assert.Equal(t, "hello", s.Messages[0].Content)
	assert.Equal(t, true, s.Messages[0].SentBy("me"))
}

func TestEngineInboundCreateAndDelete(t *testing.T) {
	e, st, mf := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")

	e.SelectConversation("c1")
	waitFor(t, func() bool { return !e.Snapshot().Loading })

	peer := "peer"
	inbound := model.Message{
		ID:             "x",
		ConversationID: "c1",
		Sender:         &peer,
		Content:        "hi there",
		CreatedAt:      testEpoch,
	}
	mf.Publish(event.NewChange(event.ResourceMessages, event.ActionCreate, "c1", inbound))

	waitFor(t, func() bool { return len(e.Snapshot().Messages) == 1 })

	// an on-screen inbound message is read immediately
	waitFor(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return len(st.readCalls) > 0
	})

	mf.Publish(event.NewChange(event.ResourceMessages, event.ActionDelete, "c1", inbound))
	waitFor(t, func() bool { return len(e.Snapshot().Messages) == 0 })

	// a delete for an unknown id changes nothing
	mf.Publish(event.NewChange(event.ResourceMessages, event.ActionDelete, "c1", inbound))
	assert.Equal(t, 0, len(e.Snapshot().Messages))
}

func TestEngineReactionFlow(t *testing.T) {
	e, st, _ := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")
	st.seedMessage("c1", "a", "peer", testEpoch)

	e.SelectConversation("c1")
	waitFor(t, func() bool { return len(e.Snapshot().Messages) == 1 })

	e.React("a", "👍")
	waitFor(t, func() bool {
		s := e.Snapshot()
		return len(s.Messages) == 1 && len(s.Messages[0].Reactions) == 1
	})

	s := e.Snapshot()
	assert.Equal(t, "👍", s.Messages[0].Reactions[0].Emoji)
	assert.Equal(t, []string{"name-me"}, s.Messages[0].Reactions[0].ReactorNames)

	// toggling the same emoji clears it
	e.React("a", "👍")
	waitFor(t, func() bool { return len(e.Snapshot().Messages[0].Reactions) == 0 })
}

func TestEngineTypingEvents(t *testing.T) {
	e, st, mf := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")

	e.SelectConversation("c1")
	waitFor(t, func() bool { return !e.Snapshot().Loading })

	mf.Publish(event.NewChange(event.ResourceTyping, event.ActionUpdate, "c1", model.TypingStatus{
		ConversationID: "c1",
		UserID:         "peer",
		IsTyping:       true,
		Timestamp:      time.Now(),
	}))
	waitFor(t, func() bool {
		s := e.Snapshot()
		return len(s.TypingUserIDs) == 1 && s.TypingUserIDs[0] == "peer"
	})

	// the engine's own typing echoes back and must be ignored
	mf.Publish(event.NewChange(event.ResourceTyping, event.ActionUpdate, "c1", model.TypingStatus{
		ConversationID: "c1",
		UserID:         "me",
		IsTyping:       true,
		Timestamp:      time.Now(),
	}))
	assert.Equal(t, []string{"peer"}, e.Snapshot().TypingUserIDs)

	mf.Publish(event.NewChange(event.ResourceTyping, event.ActionUpdate, "c1", model.TypingStatus{
		ConversationID: "c1",
		UserID:         "peer",
		IsTyping:       false,
		Timestamp:      time.Now(),
	}))
	waitFor(t, func() bool { return len(e.Snapshot().TypingUserIDs) == 0 })
}

func TestEngineSwitchReleasesFeeds(t *testing.T) {
	e, st, mf := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")
	st.seedConversation("c2", "me", "peer")
	st.seedMessage("c1", "a", "peer", testEpoch)

	e.SelectConversation("c1")
	waitFor(t, func() bool { return len(e.Snapshot().Messages) == 1 })
	assert.Equal(t, 4, mf.SubscriberCount())

	e.SelectConversation("c2")
	waitFor(t, func() bool {
		s := e.Snapshot()
		return s.ConversationID == "c2" && !s.Loading
	})

	// old feeds released, new ones opened; view cleared of c1's messages
	assert.Equal(t, 4, mf.SubscriberCount())
	assert.Equal(t, 0, len(e.Snapshot().Messages))

	// events for the old conversation no longer apply
	peer := "peer"
	mf.Publish(event.NewChange(event.ResourceMessages, event.ActionCreate, "c1", model.Message{
		ID: "z", ConversationID: "c1", Sender: &peer, CreatedAt: testEpoch,
	}))
	assert.Equal(t, 0, len(e.Snapshot().Messages))

	e.Deselect()
	waitFor(t, func() bool { return e.Snapshot().ConversationID == "" })
	assert.Equal(t, 0, mf.SubscriberCount())
}

func TestEngineConversationEvents(t *testing.T) {
	e, st, mf := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")
	st.mu.Lock()
	st.conversations["c1"].IsGroup = true
	st.conversations["c1"].GroupName = "devs"
	st.conversations["c1"].GroupAdmin = "me"
	st.mu.Unlock()

	e.SelectConversation("c1")
	waitFor(t, func() bool {
		s := e.Snapshot()
		return !s.Loading && s.Conversation != nil
	})
	assert.Equal(t, "me", e.Snapshot().Conversation.GroupAdmin)

	// an admin transfer arrives as a conversation update, no reload
	updated := model.Conversation{
		ID:           "c1",
		IsGroup:      true,
		GroupName:    "devs",
		GroupAdmin:   "peer",
		Participants: []string{"me", "peer"},
	}
	mf.Publish(event.NewChange(event.ResourceConversations, event.ActionUpdate, "c1", updated))
	waitFor(t, func() bool {
		s := e.Snapshot()
		return s.Conversation != nil && s.Conversation.GroupAdmin == "peer"
	})

	// deleting the active conversation clears the whole view
	mf.Publish(event.NewChange(event.ResourceConversations, event.ActionDelete, "c1", updated))
	waitFor(t, func() bool {
		s := e.Snapshot()
		return s.ConversationID == "" && s.Conversation == nil
	})
	assert.Equal(t, 0, mf.SubscriberCount())
}

func TestEngineDiscardsStaleSnapshot(t *testing.T) {
	e, st, _ := newTestEngine(t)
	st.seedConversation("c1", "me", "peer")
	st.seedConversation("c2", "me", "peer")
	st.seedMessage("c1", "old", "peer", testEpoch)
	st.seedMessage("c2", "new", "peer", testEpoch)

	gate := make(chan struct{})
	st.mu.Lock()
	st.fetchGates["c1"] = gate
	st.mu.Unlock()

	// c1's fetch hangs; switching to c2 makes its eventual result stale
	e.SelectConversation("c1")
	e.SelectConversation("c2")
	waitFor(t, func() bool {
		s := e.Snapshot()
		return s.ConversationID == "c2" && !s.Loading && len(s.Messages) == 1
	})

	close(gate)

	// the late c1 snapshot must be discarded, not applied
	time.Sleep(20 * time.Millisecond)
	s := e.Snapshot()
	assert.Equal(t, "c2", s.ConversationID)
	assert.Equal(t, []string{"new"}, ids(s.Messages))
}

func TestEngineSendWithoutConversation(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.SendMessage("orphan", SendOptions{})
	waitFor(t, func() bool { return e.Snapshot().LastErr != nil })
	assert.Equal(t, ErrNoActiveConversation, e.Snapshot().LastErr)
}
