package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/db"
	"github.com/sahilt56/messaging-app/internal/event"
	"github.com/sahilt56/messaging-app/internal/model"
	"github.com/sahilt56/messaging-app/internal/store"
)

type userRepository struct {
	users  *db.Collection[model.User]
	typing *db.Collection[model.TypingStatus]
	sink   event.Sink
	logger *zap.Logger
}

// UserRepository is the MongoDB-backed presence store: user lookups,
// last-seen heartbeats and typing rows.
type UserRepository interface {
	store.PresenceStore
}

func NewUserRepository(database *mongo.Database, sink event.Sink, logger *zap.Logger) UserRepository {
	return &userRepository{
		users:  db.NewCollection[model.User](database, collUsers),
		typing: db.NewCollection[model.TypingStatus](database, collTyping),
		sink:   sink,
		logger: logger,
	}
}

func (u *userRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if user == nil {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (u *userRepository) Heartbeat(ctx context.Context, userID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := u.users.UpdateByID(ctx, userID, bson.M{"last_seen": time.Now().UTC()})
	if err != nil {
		u.logger.Warn("heartbeat write failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	return nil
}

func (u *userRepository) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// One row per (conversation, user), overwritten on every change.
	status := model.TypingStatus{
		ID:             conversationID + ":" + userID,
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
		Timestamp:      time.Now().UTC(),
	}
	filter := db.NewFilter().
		Eq("conversation_id", conversationID).
		Eq("user_id", userID).
		Build()
	if err := u.typing.Upsert(ctx, filter, status); err != nil {
		return fmt.Errorf("typing upsert failed: %w", err)
	}

	u.sink.Publish(event.NewChange(event.ResourceTyping, event.ActionUpdate, conversationID, status))
	return nil
}
