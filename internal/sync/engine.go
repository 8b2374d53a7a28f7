package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/event"
	"github.com/sahilt56/messaging-app/internal/feed"
	"github.com/sahilt56/messaging-app/internal/model"
	"github.com/sahilt56/messaging-app/internal/store"
)

var (
	// ErrNoActiveConversation - a message or reaction was attempted with no
	// conversation selected.
	ErrNoActiveConversation = errors.New("no active conversation")
)

var (
	// tuning parameters
	commandBufSize = 256              // queued commands before producers block
	loadTimeout    = 30 * time.Second // initial snapshot fetch budget
	mutateTimeout  = 10 * time.Second // send/reaction/read mutation budget
	sweepSlack     = 50 * time.Millisecond
)

// SendOptions carries the optional fields of an outbound message.
type SendOptions struct {
	Attachment    string
	ReplyTo       string
	IsForwarded   bool
	IsCodeSnippet bool
	CodeLanguage  string
	IsSystem      bool
}

// Snapshot is the immutable conversation view handed to the UI layer. Every
// field is a copy; renderers never share memory with the engine.
type Snapshot struct {
	ConversationID string
	Conversation   *model.Conversation
	Loading        bool
	Messages       []model.MessageView
	TypingUserIDs  []string
	Unread         int
	LoadErr        error
	LastErr        error
}

// Config wires an Engine.
type Config struct {
	UserID   string
	Store    store.Store
	Feed     feed.Feed
	Resolver AttachmentResolver
	Logger   *zap.Logger

	// Now and Timers default to the real clock; tests override them.
	Now    func() time.Time
	Timers TimerFactory
}

// Engine is the conversation-synchronization core. All state is owned by a
// single event loop: feed events, timer fires and UI commands serialize onto
// one channel, so no component behind the loop needs locks. Mutations go to
// the backend first; the resulting feed event, or the optimistic local echo,
// is what updates the state.
type Engine struct {
	logger   *zap.Logger
	store    store.Store
	feed     feed.Feed
	subs     *feed.Registry
	userID   string
	resolve  AttachmentResolver
	now      func() time.Time
	newTimer TimerFactory

	commands chan func()
	changes  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	// state below is owned by the run loop
	activeID   string
	conv       *model.Conversation
	generation int // identity for in-flight snapshot fetches
	loading    bool
	loadErr    error
	lastErr    error
	names      map[string]string
	recon      *Reconciler
	reactions  *ReactionAggregator
	typing     *TypingTracker
	typist     *TypingBroadcaster
	stopSweep  func()
}

// NewEngine builds and starts an engine for one user session.
func NewEngine(cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		logger:   cfg.Logger,
		store:    cfg.Store,
		feed:     cfg.Feed,
		subs:     feed.NewRegistry(),
		userID:   cfg.UserID,
		resolve:  cfg.Resolver,
		now:      cfg.Now,
		newTimer: cfg.Timers,
		commands: make(chan func(), commandBufSize),
		changes:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		names:    make(map[string]string),
		typing:   NewTypingTracker(),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newTimer == nil {
		e.newTimer = afterFunc
	}

	nameOf := func(userID string) string { return e.names[userID] }
	e.recon = NewReconciler(e.resolve, nameOf)
	e.reactions = NewReactionAggregator(nameOf)
	e.typist = NewTypingBroadcaster(e.broadcastTyping, e.newTimer)

	go e.run()
	go e.heartbeatLoop()

	return e
}

// Stop shuts the engine down and releases every feed subscription.
func (e *Engine) Stop() {
	e.cancel()
	e.typist.Cancel()
	e.subs.ReleaseAll()
}

// Changes signals that a new Snapshot is available. Signals are coalesced;
// consumers re-render from Snapshot() on each tick.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes
}

// Snapshot returns the current conversation view.
func (e *Engine) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !e.enqueue(func() { reply <- e.snapshotLocked() }) {
		return Snapshot{}
	}
	select {
	case s := <-reply:
		return s
	case <-e.ctx.Done():
		return Snapshot{}
	}
}

// SelectConversation makes id the active conversation: it tears down the
// previous conversation's feeds, fetches the initial snapshot, and only then
// opens the new feeds. Selecting the already-active id is a no-op.
func (e *Engine) SelectConversation(id string) {
	e.enqueue(func() { e.activate(id) })
}

// Deselect releases every feed and clears the view.
func (e *Engine) Deselect() {
	e.enqueue(func() { e.deactivate() })
}

// SendMessage sends to the active conversation. The message appears in the
// view immediately as an optimistic echo; the feed's create event for the
// same id deduplicates against it. On backend failure the echo is removed
// and the error is surfaced in the snapshot, with retry left to the caller.
func (e *Engine) SendMessage(content string, opts SendOptions) {
	e.enqueue(func() { e.sendMessage(content, opts) })
}

// DeleteMessage deletes a message for everyone. The local view updates when
// the delete event comes back; deleting an already-gone message succeeds.
func (e *Engine) DeleteMessage(messageID string) {
	e.enqueue(func() {
		ctx, cancelFn := context.WithTimeout(e.ctx, mutateTimeout)
		go func() {
			defer cancelFn()
			if err := e.store.DeleteMessage(ctx, messageID); err != nil {
				e.fail("delete message", err)
			}
		}()
	})
}

// RemoveLocally hides a message from this client only ("delete for me").
func (e *Engine) RemoveLocally(messageID string) {
	e.enqueue(func() {
		if e.recon.ApplyDelete(messageID) {
			e.reactions.Drop(messageID)
			e.notify()
		}
	})
}

// React toggles the user's reaction on a message. State updates flow back
// through the reaction feed, keeping a single path of truth.
func (e *Engine) React(messageID, emoji string) {
	e.enqueue(func() {
		ctx, cancelFn := context.WithTimeout(e.ctx, mutateTimeout)
		go func() {
			defer cancelFn()
			if _, err := e.store.ToggleReaction(ctx, messageID, e.userID, emoji); err != nil {
				e.fail("toggle reaction", err)
			}
		}()
	})
}

// SetTyping reports composition activity. true marks a keystroke: the
// broadcast goes out immediately and a single idle timer is reset; false
// (sent when the message goes out) forces an immediate stop.
func (e *Engine) SetTyping(typing bool) {
	if typing {
		e.typist.Keystroke()
	} else {
		e.typist.MessageSent()
	}
}

// -----------------------------------------------------------------
// Event loop
// -----------------------------------------------------------------

func (e *Engine) run() {
	defer close(e.changes)
	for {
		select {
		case <-e.ctx.Done():
			return
		case cmd := <-e.commands:
			cmd()
		}
	}
}

func (e *Engine) enqueue(cmd func()) bool {
	select {
	case e.commands <- cmd:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
		// a signal is already pending
	}
}

func (e *Engine) fail(op string, err error) {
	e.logger.Warn("backend call failed", zap.String("op", op), zap.Error(err))
	e.enqueue(func() {
		e.lastErr = err
		e.notify()
	})
}

func (e *Engine) snapshotLocked() Snapshot {
	var conv *model.Conversation
	if e.conv != nil {
		c := *e.conv
		c.Participants = append([]string(nil), e.conv.Participants...)
		conv = &c
	}
	return Snapshot{
		ConversationID: e.activeID,
		Conversation:   conv,
		Loading:        e.loading,
		Messages:       e.recon.Messages(),
		TypingUserIDs:  e.typing.ActiveTypists(e.now(), e.userID),
		Unread:         e.recon.UnreadCount(e.userID),
		LoadErr:        e.loadErr,
		LastErr:        e.lastErr,
	}
}

// -----------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------

type loadedSnapshot struct {
	conversationID string
	generation     int
	conv           *model.Conversation
	messages       []model.Message
	reactions      map[string][]model.Reaction
	names          map[string]string
	err            error
}

func (e *Engine) activate(id string) {
	if id == e.activeID {
		return
	}
	e.deactivate()
	if id == "" {
		return
	}

	e.activeID = id
	e.generation++
	e.loading = true
	e.loadErr = nil
	e.notify()

	gen := e.generation
	ctx, cancelFn := context.WithTimeout(e.ctx, loadTimeout)
	go func() {
		defer cancelFn()
		loaded := e.fetchSnapshot(ctx, id)
		loaded.generation = gen
		e.enqueue(func() { e.finishLoad(loaded) })
	}()
}

func (e *Engine) deactivate() {
	e.subs.ReleaseAll()
	e.typist.Cancel()
	if e.stopSweep != nil {
		e.stopSweep()
		e.stopSweep = nil
	}
	e.recon.Reset()
	e.reactions.Reset()
	e.typing.Reset()
	e.activeID = ""
	e.conv = nil
	e.loading = false
	e.loadErr = nil
	e.notify()
}

// fetchSnapshot runs off-loop: the full message list, each message's
// reactions, and participant display names.
func (e *Engine) fetchSnapshot(ctx context.Context, conversationID string) loadedSnapshot {
	loaded := loadedSnapshot{conversationID: conversationID}

	msgs, err := e.store.FetchMessages(ctx, conversationID)
	if err != nil {
		loaded.err = err
		return loaded
	}
	loaded.messages = msgs

	loaded.reactions = make(map[string][]model.Reaction, len(msgs))
	for i := range msgs {
		rows, err := e.store.FetchReactions(ctx, msgs[i].ID)
		if err != nil {
			loaded.err = err
			return loaded
		}
		if len(rows) > 0 {
			loaded.reactions[msgs[i].ID] = rows
		}
	}

	loaded.names = make(map[string]string)
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		loaded.err = err
		return loaded
	}
	if conv != nil {
		loaded.conv = conv
		for _, userID := range conv.Participants {
			user, err := e.store.GetUser(ctx, userID)
			if err != nil || user == nil {
				continue // display falls back to "Unknown"
			}
			loaded.names[userID] = user.Name
		}
	}
	return loaded
}

func (e *Engine) finishLoad(loaded loadedSnapshot) {
	// Identity check: a snapshot for a conversation that is no longer
	// active arrived late and must be discarded, not applied.
	if loaded.generation != e.generation || loaded.conversationID != e.activeID {
		return
	}

	e.loading = false
	if loaded.err != nil {
		// Surface once; retrying is the caller's responsibility.
		e.loadErr = loaded.err
		e.notify()
		return
	}

	e.conv = loaded.conv
	e.names = loaded.names
	e.recon.LoadSnapshot(loaded.messages)
	for messageID, rows := range loaded.reactions {
		e.reactions.Load(messageID, rows)
		e.recon.SetReactions(messageID, e.reactions.Groups(messageID))
	}
	e.markRead()

	if err := e.openFeeds(loaded.conversationID); err != nil {
		// Surfaced once; no retry loop for a dead feed. Handles already
		// opened are released so re-activation cannot double-deliver.
		e.subs.ReleaseAll()
		e.loadErr = err
		e.notify()
		return
	}

	e.notify()
}

func (e *Engine) openFeeds(conversationID string) error {
	for _, resource := range []string{
		event.ResourceMessages,
		event.ResourceReactions,
		event.ResourceTyping,
		event.ResourceConversations,
	} {
		resource := resource
		sub, err := e.feed.Subscribe(resource, conversationID, func(ev event.ChangeEvent) {
			e.enqueue(func() { e.handleEvent(ev) })
		})
		if err != nil {
			return err
		}
		e.subs.Add(feed.Key{Resource: resource, ConversationID: conversationID}, sub)
	}
	return nil
}

// -----------------------------------------------------------------
// Inbound feed events
// -----------------------------------------------------------------

func (e *Engine) handleEvent(ev event.ChangeEvent) {
	if ev.ConversationID != e.activeID || e.loading {
		return // stale: the conversation switched while this was in flight
	}

	switch ev.Resource {
	case event.ResourceMessages:
		e.handleMessageEvent(ev)
	case event.ResourceReactions:
		e.handleReactionEvent(ev)
	case event.ResourceTyping:
		e.handleTypingEvent(ev)
	case event.ResourceConversations:
		e.handleConversationEvent(ev)
	default:
		e.logger.Debug("unknown feed resource", zap.String("resource", ev.Resource))
	}
}

func (e *Engine) handleMessageEvent(ev event.ChangeEvent) {
	var msg model.Message
	if err := ev.Decode(&msg); err != nil {
		e.logger.Error("undecodable message event", zap.Error(err))
		return
	}

	switch ev.Action {
	case event.ActionCreate:
		if !e.recon.ApplyCreate(msg) {
			return // optimistic echo already holds this id
		}
		if !msg.SentBy(e.userID) {
			// New inbound message while this conversation is on screen:
			// it is read the moment it lands.
			e.markRead()
		}
		e.notify()

	case event.ActionUpdate:
		if e.recon.ApplyUpdate(msg) {
			e.notify()
		}

	case event.ActionDelete:
		if e.recon.ApplyDelete(msg.ID) {
			e.reactions.Drop(msg.ID)
			e.notify()
		}
	}
}

func (e *Engine) handleReactionEvent(ev event.ChangeEvent) {
	var rc model.Reaction
	if err := ev.Decode(&rc); err != nil {
		e.logger.Error("undecodable reaction event", zap.Error(err))
		return
	}

	messageID := e.reactions.Apply(ev.Action, rc)
	if messageID == "" {
		return
	}
	if e.recon.SetReactions(messageID, e.reactions.Groups(messageID)) {
		e.notify()
	}
}

func (e *Engine) handleTypingEvent(ev event.ChangeEvent) {
	var st model.TypingStatus
	if err := ev.Decode(&st); err != nil {
		e.logger.Error("undecodable typing event", zap.Error(err))
		return
	}
	if st.UserID == e.userID {
		return
	}

	e.typing.Observe(st.UserID, st.IsTyping, e.now())
	e.scheduleTypingSweep()
	e.notify()
}

// handleConversationEvent keeps the active conversation's metadata current:
// participant changes, renames and admin transfers land here without a
// reload. Deleting the active conversation clears the view entirely.
func (e *Engine) handleConversationEvent(ev event.ChangeEvent) {
	if ev.Action == event.ActionDelete {
		e.deactivate()
		return
	}

	var conv model.Conversation
	if err := ev.Decode(&conv); err != nil {
		e.logger.Error("undecodable conversation event", zap.Error(err))
		return
	}
	e.conv = &conv
	e.refreshNames(conv.Participants)
	e.notify()
}

// refreshNames resolves display names for participants the engine has not
// seen before, off the loop; results merge back in as a command.
func (e *Engine) refreshNames(participants []string) {
	var missing []string
	for _, userID := range participants {
		if _, ok := e.names[userID]; !ok {
			missing = append(missing, userID)
		}
	}
	if len(missing) == 0 {
		return
	}

	ctx, cancelFn := context.WithTimeout(e.ctx, mutateTimeout)
	go func() {
		defer cancelFn()
		found := make(map[string]string, len(missing))
		for _, userID := range missing {
			user, err := e.store.GetUser(ctx, userID)
			if err != nil || user == nil {
				continue
			}
			found[userID] = user.Name
		}
		if len(found) == 0 {
			return
		}
		e.enqueue(func() {
			for userID, name := range found {
				e.names[userID] = name
			}
			e.notify()
		})
	}()
}

// scheduleTypingSweep arranges a wakeup when the earliest typing claim goes
// stale, so an unrefreshed "typing" disappears without any further event.
func (e *Engine) scheduleTypingSweep() {
	if e.stopSweep != nil {
		e.stopSweep()
		e.stopSweep = nil
	}
	d, ok := e.typing.NextExpiry(e.now())
	if !ok {
		return
	}
	e.stopSweep = e.newTimer(d+sweepSlack, func() {
		e.enqueue(func() {
			e.stopSweep = nil
			e.scheduleTypingSweep()
			e.notify()
		})
	})
}

// -----------------------------------------------------------------
// Outbound mutations
// -----------------------------------------------------------------

func (e *Engine) sendMessage(content string, opts SendOptions) {
	if e.activeID == "" {
		e.lastErr = ErrNoActiveConversation
		e.notify()
		return
	}

	e.typist.MessageSent()

	msg := model.Message{
		ID:              uuid.NewString(),
		ConversationID:  e.activeID,
		Content:         content,
		Attachment:      opts.Attachment,
		ReplyTo:         opts.ReplyTo,
		IsSystemMessage: opts.IsSystem,
		IsForwarded:     opts.IsForwarded,
		IsCodeSnippet:   opts.IsCodeSnippet,
		CodeLanguage:    opts.CodeLanguage,
		CreatedAt:       e.now(),
	}
	if !opts.IsSystem {
		sender := e.userID
		msg.Sender = &sender
	}

	// Optimistic echo: the feed's create event carries the same id and
	// deduplicates against this entry.
	e.recon.ApplyCreate(msg)
	e.lastErr = nil
	e.notify()

	ctx, cancelFn := context.WithTimeout(e.ctx, mutateTimeout)
	go func() {
		defer cancelFn()
		stored, err := e.store.CreateMessage(ctx, msg)
		if err != nil {
			e.enqueue(func() {
				if e.activeID == msg.ConversationID {
					e.recon.ApplyDelete(msg.ID)
				}
				e.lastErr = err
				e.notify()
			})
			return
		}
		if err := e.store.UpdateSummary(ctx, stored.ConversationID, stored.Preview(), stored.CreatedAt); err != nil {
			e.logger.Warn("summary update failed", zap.Error(err))
		}
	}()
}

// markRead performs the local batch read transition and mirrors it to the
// backend. The user's own messages are never touched.
func (e *Engine) markRead() {
	if e.recon.MarkReadLocal(e.userID) == 0 {
		return
	}
	conversationID := e.activeID
	ctx, cancelFn := context.WithTimeout(e.ctx, mutateTimeout)
	go func() {
		defer cancelFn()
		if err := e.store.MarkConversationRead(ctx, conversationID, e.userID); err != nil {
			e.logger.Warn("mark read failed", zap.Error(err))
		}
	}()
}

func (e *Engine) broadcastTyping(typing bool) {
	e.enqueue(func() {
		if e.activeID == "" {
			return
		}
		conversationID := e.activeID
		go func() {
			if err := e.store.SetTyping(context.Background(), conversationID, e.userID, typing); err != nil {
				e.logger.Debug("typing broadcast failed", zap.Error(err))
			}
		}()
	})
}

func (e *Engine) heartbeatLoop() {
	beat := func() {
		if err := e.store.Heartbeat(context.Background(), e.userID); err != nil {
			e.logger.Debug("heartbeat failed", zap.Error(err))
		}
	}
	beat()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}
