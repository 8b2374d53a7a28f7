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
	ErrInvalidGroupName   = fmt.Errorf("%w: group name cannot be empty", store.ErrInvalid)
	ErrTooFewParticipants = fmt.Errorf("%w: a conversation needs at least two participants", store.ErrInvalid)
	ErrAlreadyParticipant = fmt.Errorf("%w: user is already a participant", store.ErrInvalid)
	ErrNotParticipant     = fmt.Errorf("%w: user is not a participant", store.ErrInvalid)
	ErrSelfConversation   = fmt.Errorf("%w: cannot start a conversation with yourself", store.ErrInvalid)
)

type conversationRepository struct {
	conversations *db.Collection[model.Conversation]
	messages      *db.Collection[model.Message]
	reactions     *db.Collection[model.Reaction]
	typing        *db.Collection[model.TypingStatus]
	sink          event.Sink
	logger        *zap.Logger
}

// ConversationRepository is the MongoDB-backed conversation store. Metadata
// and membership changes publish conversation update events so open clients
// adjust without a reload.
type ConversationRepository interface {
	store.ConversationStore
}

func NewConversationRepository(database *mongo.Database, sink event.Sink, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		conversations: db.NewCollection[model.Conversation](database, collConversations),
		messages:      db.NewCollection[model.Message](database, collMessages),
		reactions:     db.NewCollection[model.Reaction](database, collReactions),
		typing:        db.NewCollection[model.TypingStatus](database, collTyping),
		sink:          sink,
		logger:        logger,
	}
}

func (c *conversationRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	if id == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := c.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("conversation lookup failed: %w", err)
	}
	if conv == nil {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

func (c *conversationRepository) FetchConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participants", userID).Build()
	convs, err := c.conversations.FindAll(ctx, filter, "last_message_time", true)
	if err != nil {
		c.logger.Error("failed to query conversations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch conversations failed: %w", err)
	}
	return convs, nil
}

func (c *conversationRepository) FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("is_group", false).
		All("participants", userA, userB).
		Size("participants", 2).
		Build()
	return c.conversations.FindOne(ctx, filter)
}

func (c *conversationRepository) CreateDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfConversation
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// At most one direct conversation per user pair. Reuse the existing one.
	existing, err := c.FindDirect(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("direct lookup failed: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	conv := model.Conversation{
		ID:           uuid.NewString(),
		IsGroup:      false,
		Participants: []string{userA, userB},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.conversations.Insert(ctx, conv); err != nil {
		return nil, fmt.Errorf("insert conversation failed: %w", err)
	}

	c.logger.Info("direct conversation created", zap.String("conversation_id", conv.ID))
	c.sink.Publish(event.NewChange(event.ResourceConversations, event.ActionCreate, conv.ID, conv))
	return &conv, nil
}

func (c *conversationRepository) CreateGroup(ctx context.Context, name string, participants []string, adminID string) (*model.Conversation, error) {
	if name == "" {
		return nil, ErrInvalidGroupName
	}

	// The admin is always a participant.
	members := make([]string, 0, len(participants)+1)
	seen := make(map[string]bool, len(participants)+1)
	for _, id := range append([]string{adminID}, participants...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if len(members) < 2 {
		return nil, ErrTooFewParticipants
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	conv := model.Conversation{
		ID:           uuid.NewString(),
		IsGroup:      true,
		Participants: members,
		GroupName:    name,
		GroupAdmin:   adminID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.conversations.Insert(ctx, conv); err != nil {
		return nil, fmt.Errorf("insert group failed: %w", err)
	}

	c.logger.Info("group created",
		zap.String("conversation_id", conv.ID),
		zap.String("admin", adminID),
		zap.Int("participants", len(members)),
	)
	c.sink.Publish(event.NewChange(event.ResourceConversations, event.ActionCreate, conv.ID, conv))
	return &conv, nil
}

func (c *conversationRepository) UpdateSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := c.conversations.UpdateByID(ctx, conversationID, bson.M{
		"last_message":      lastMessage,
		"last_message_time": at,
		"updated_at":        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("summary update failed: %w", err)
	}
	c.publishUpdate(ctx, conversationID)
	return nil
}

func (c *conversationRepository) AddParticipant(ctx context.Context, conversationID, userID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	conv, err := c.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.HasParticipant(userID) {
		return ErrAlreadyParticipant
	}

	_, err = c.conversations.UpdateByID(ctx, conversationID, bson.M{
		"participants": append(conv.Participants, userID),
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("add participant failed: %w", err)
	}
	c.publishUpdate(ctx, conversationID)
	return nil
}

func (c *conversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	conv, err := c.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}

	remaining := make([]string, 0, len(conv.Participants)-1)
	for _, id := range conv.Participants {
		if id != userID {
			remaining = append(remaining, id)
		}
	}

	_, err = c.conversations.UpdateByID(ctx, conversationID, bson.M{
		"participants": remaining,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("remove participant failed: %w", err)
	}
	c.publishUpdate(ctx, conversationID)
	return nil
}

func (c *conversationRepository) LeaveGroup(ctx context.Context, conversationID, userID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	conv, err := c.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.IsAdmin(userID) {
		return store.ErrAdminCannotLeave
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}

	if len(conv.Participants) <= 1 {
		// Last member walking out; nothing left worth keeping.
		return c.deleteCascade(ctx, conv)
	}
	return c.RemoveParticipant(ctx, conversationID, userID)
}

func (c *conversationRepository) TransferAdmin(ctx context.Context, conversationID, byUserID, newAdminID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	conv, err := c.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsAdmin(byUserID) {
		return store.ErrNotAdmin
	}
	if !conv.HasParticipant(newAdminID) {
		return ErrNotParticipant
	}

	_, err = c.conversations.UpdateByID(ctx, conversationID, bson.M{
		"group_admin": newAdminID,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("transfer admin failed: %w", err)
	}

	c.logger.Info("group admin transferred",
		zap.String("conversation_id", conversationID),
		zap.String("from", byUserID),
		zap.String("to", newAdminID),
	)
	// The update event carries the new admin to every open client, so
	// admin-dependent UI adjusts in place.
	c.publishUpdate(ctx, conversationID)
	return nil
}

func (c *conversationRepository) DeleteConversation(ctx context.Context, conversationID, byUserID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := c.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("conversation lookup failed: %w", err)
	}
	if conv == nil {
		return nil
	}
	if conv.IsGroup && !conv.IsAdmin(byUserID) {
		return store.ErrNotAdmin
	}
	return c.deleteCascade(ctx, conv)
}

// deleteCascade removes the conversation with its messages, reaction rows and
// typing rows, then announces the deletion.
func (c *conversationRepository) deleteCascade(ctx context.Context, conv *model.Conversation) error {
	msgs, err := c.messages.FindAll(ctx, db.NewFilter().Eq("conversation_id", conv.ID).Build(), "", false)
	if err != nil {
		return fmt.Errorf("cascade query failed: %w", err)
	}
	for i := range msgs {
		if _, err := c.reactions.DeleteMany(ctx, db.NewFilter().Eq("message_id", msgs[i].ID).Build()); err != nil {
			return fmt.Errorf("reaction cascade failed: %w", err)
		}
	}
	if _, err := c.messages.DeleteMany(ctx, db.NewFilter().Eq("conversation_id", conv.ID).Build()); err != nil {
		return fmt.Errorf("message cascade failed: %w", err)
	}
	if _, err := c.typing.DeleteMany(ctx, db.NewFilter().Eq("conversation_id", conv.ID).Build()); err != nil {
		return fmt.Errorf("typing cascade failed: %w", err)
	}
	if _, err := c.conversations.DeleteByID(ctx, conv.ID); err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}

	c.logger.Info("conversation deleted",
		zap.String("conversation_id", conv.ID),
		zap.Int("messages", len(msgs)),
	)
	c.sink.Publish(event.NewChange(event.ResourceConversations, event.ActionDelete, conv.ID, conv))
	return nil
}

// publishUpdate re-reads the conversation and pushes it as an update event.
// Failures are logged, not returned; the write already succeeded.
func (c *conversationRepository) publishUpdate(ctx context.Context, conversationID string) {
	conv, err := c.conversations.FindByID(ctx, conversationID)
	if err != nil || conv == nil {
		c.logger.Warn("conversation update event skipped",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return
	}
	c.sink.Publish(event.NewChange(event.ResourceConversations, event.ActionUpdate, conversationID, conv))
}
