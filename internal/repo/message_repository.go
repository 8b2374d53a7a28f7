package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/db"
	"github.com/sahilt56/messaging-app/internal/event"
	"github.com/sahilt56/messaging-app/internal/model"
	"github.com/sahilt56/messaging-app/internal/store"
)

var (
	ErrInvalidMessage        = fmt.Errorf("%w: message needs content, an attachment or the system flag", store.ErrInvalid)
	ErrInvalidConversationID = fmt.Errorf("%w: conversation id cannot be empty", store.ErrInvalid)
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Collection names
	collMessages      = "messages"
	collReactions     = "reactions"
	collConversations = "conversations"
	collTyping        = "typing_status"
	collUsers         = "users"
)

type messageRepository struct {
	messages      *db.Collection[model.Message]
	reactions     *db.Collection[model.Reaction]
	conversations *db.Collection[model.Conversation]
	sink          event.Sink
	logger        *zap.Logger
}

// MessageRepository is the MongoDB-backed message and reaction store. Every
// mutation publishes its change event through the sink so feed subscribers
// see it pushed.
type MessageRepository interface {
	store.MessageStore
	store.ReactionStore
}

func NewMessageRepository(database *mongo.Database, sink event.Sink, logger *zap.Logger) MessageRepository {
	return &messageRepository{
		messages:      db.NewCollection[model.Message](database, collMessages),
		reactions:     db.NewCollection[model.Reaction](database, collReactions),
		conversations: db.NewCollection[model.Conversation](database, collConversations),
		sink:          sink,
		logger:        logger,
	}
}

// -----------------------------------------------------------------------------
// FetchMessages
// -----------------------------------------------------------------------------

func (m *messageRepository) FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", conversationID).Build()
	msgs, err := m.messages.FindAll(ctx, filter, "created_at", false)
	if err != nil {
		m.logger.Error("failed to query messages",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch messages failed: %w", err)
	}

	m.logger.Debug("messages retrieved",
		zap.String("conversation_id", conversationID),
		zap.Int("count", len(msgs)),
	)
	return msgs, nil
}

// -----------------------------------------------------------------------------
// CreateMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) CreateMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.ConversationID == "" {
		return model.Message{}, ErrInvalidConversationID
	}
	if msg.Content == "" && msg.Attachment == "" && !msg.IsSystemMessage {
		return model.Message{}, ErrInvalidMessage
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	conv, err := m.conversations.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return model.Message{}, fmt.Errorf("conversation lookup failed: %w", err)
	}
	if conv == nil {
		return model.Message{}, store.ErrNotFound
	}
	if !msg.IsSystemMessage && !conv.CanPost(msg.SenderID()) {
		return model.Message{}, store.ErrAdminOnly
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := m.messages.Insert(ctx, msg); err != nil {
		m.logger.Error("failed to insert message",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		return model.Message{}, fmt.Errorf("insert message failed: %w", err)
	}

	m.logger.Info("message inserted",
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", msg.ConversationID),
	)
	m.sink.Publish(event.NewChange(event.ResourceMessages, event.ActionCreate, msg.ConversationID, msg))
	return msg, nil
}

// -----------------------------------------------------------------------------
// DeleteMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) DeleteMessage(ctx context.Context, id string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg, err := m.messages.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("message lookup failed: %w", err)
	}
	if msg == nil {
		// Already gone, typically removed by a cascading delete on the
		// conversation. Two valid deletion paths raced; this one lost.
		// Success, not error.
		m.logger.Debug("delete of absent message ignored", zap.String("message_id", id))
		return nil
	}

	// Cascade the message's reaction rows.
	if _, err := m.reactions.DeleteMany(ctx, db.NewFilter().Eq("message_id", id).Build()); err != nil {
		return fmt.Errorf("reaction cascade failed: %w", err)
	}

	deleted, err := m.messages.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if deleted {
		m.sink.Publish(event.NewChange(event.ResourceMessages, event.ActionDelete, msg.ConversationID, msg))
	}
	return nil
}

// -----------------------------------------------------------------------------
// Read receipts
// -----------------------------------------------------------------------------

func (m *messageRepository) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// One batch update, never per message. The sender's own messages are
	// excluded by the filter.
	filter := db.NewFilter().
		Eq("conversation_id", conversationID).
		Ne("sender", userID).
		Eq("read", false).
		Build()

	n, err := m.messages.UpdateMany(ctx, filter, bson.M{"read": true})
	if err != nil {
		return fmt.Errorf("mark read failed: %w", err)
	}

	m.logger.Debug("messages marked read",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
		zap.Int64("count", n),
	)
	return nil
}

func (m *messageRepository) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", conversationID).
		Ne("sender", userID).
		Eq("read", false).
		Build()
	return m.messages.Count(ctx, filter)
}

// -----------------------------------------------------------------------------
// ClearHistory
// -----------------------------------------------------------------------------

func (m *messageRepository) ClearHistory(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	// Newest first, so reply references never point at a message deleted
	// later in the same sweep.
	msgs, err := m.messages.FindAll(ctx, db.NewFilter().Eq("conversation_id", conversationID).Build(), "created_at", true)
	if err != nil {
		return fmt.Errorf("clear history query failed: %w", err)
	}

	for i := range msgs {
		if err := m.DeleteMessage(ctx, msgs[i].ID); err != nil {
			return err
		}
	}

	_, err = m.conversations.UpdateByID(ctx, conversationID, bson.M{
		"last_message":      "Chat history cleared",
		"last_message_time": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("summary update failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

func (m *messageRepository) FetchReactions(ctx context.Context, messageID string) ([]model.Reaction, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	return m.reactions.FindAll(ctx, db.NewFilter().Eq("message_id", messageID).Build(), "", false)
}

func (m *messageRepository) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (store.ToggleResult, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg, err := m.messages.FindByID(ctx, messageID)
	if err != nil {
		return store.ToggleResult{}, fmt.Errorf("message lookup failed: %w", err)
	}
	if msg == nil {
		// The message vanished between the user's click and this call.
		// Nothing to react to; benign.
		m.logger.Debug("reaction toggle on absent message ignored", zap.String("message_id", messageID))
		return store.ToggleResult{Action: model.ReactionDeleted}, nil
	}

	filter := db.NewFilter().Eq("message_id", messageID).Eq("user_id", userID).Build()
	existing, err := m.reactions.FindAll(ctx, filter, "", false)
	if err != nil {
		return store.ToggleResult{}, fmt.Errorf("reaction lookup failed: %w", err)
	}

	plan := model.PlanReactionToggle(existing, messageID, userID, emoji)

	for _, row := range existing {
		for _, deleteID := range plan.Deletes {
			if row.ID != deleteID {
				continue
			}
			if _, err := m.reactions.DeleteByID(ctx, deleteID); err != nil {
				return store.ToggleResult{}, fmt.Errorf("delete reaction failed: %w", err)
			}
			m.sink.Publish(event.NewChange(event.ResourceReactions, event.ActionDelete, msg.ConversationID, row))
		}
	}

	if plan.Create == nil {
		return store.ToggleResult{Action: plan.Action}, nil
	}

	rc := *plan.Create
	rc.ID = uuid.NewString()
	if err := m.reactions.Insert(ctx, rc); err != nil {
		return store.ToggleResult{}, fmt.Errorf("insert reaction failed: %w", err)
	}
	m.sink.Publish(event.NewChange(event.ResourceReactions, event.ActionCreate, msg.ConversationID, rc))

	return store.ToggleResult{Action: plan.Action, Reaction: &rc}, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
