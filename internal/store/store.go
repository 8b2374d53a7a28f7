// Package store defines the backend collaborator surface the sync engine
// operates against. The engine never talks to a concrete backend; it
// consumes these interfaces, and the repo package provides the MongoDB
// implementation used by the reference server.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sahilt56/messaging-app/internal/model"
)

var (
	// ErrAdminOnly - a non-admin tried to post in an admin-only group.
	ErrAdminOnly = errors.New("only admins can send messages in this group")

	// ErrNotAdmin - a group operation reserved for the admin.
	ErrNotAdmin = errors.New("only the group admin can perform this action")

	// ErrAdminCannotLeave - the admin must transfer rights or delete the
	// group instead of leaving it.
	ErrAdminCannotLeave = errors.New("admin must transfer rights or delete the group")

	// ErrNotFound - a referenced record does not exist. Delete paths never
	// return this; deleting an absent record is treated as success.
	ErrNotFound = errors.New("record not found")

	// ErrInvalid - the request itself is malformed. Store implementations
	// wrap their validation errors around this sentinel.
	ErrInvalid = errors.New("invalid request")
)

// ToggleResult reports the action a reaction toggle took so callers can
// update their grouped view without refetching.
type ToggleResult struct {
	Action   string          `json:"action"` // model.ReactionCreated or model.ReactionDeleted
	Reaction *model.Reaction `json:"reaction,omitempty"`
}

// MessageStore covers message snapshot loads and mutations. FetchMessages
// returns the conversation history ascending by creation time.
type MessageStore interface {
	FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	// CreateMessage persists a message. The caller may supply the id (the
	// engine does, for optimistic echo dedup); an empty id is assigned by
	// the store. Returns the stored message.
	CreateMessage(ctx context.Context, msg model.Message) (model.Message, error)

	// DeleteMessage removes a message for everyone. Deleting an id that is
	// already gone is a success, not an error.
	DeleteMessage(ctx context.Context, id string) error

	// MarkConversationRead flips read=true on every unread message in the
	// conversation not sent by userID, as one batch.
	MarkConversationRead(ctx context.Context, conversationID, userID string) error

	UnreadCount(ctx context.Context, conversationID, userID string) (int64, error)

	// ClearHistory deletes every message in the conversation, tolerating
	// rows already removed by cascades.
	ClearHistory(ctx context.Context, conversationID string) error
}

// ReactionStore covers reaction rows.
type ReactionStore interface {
	FetchReactions(ctx context.Context, messageID string) ([]model.Reaction, error)

	// ToggleReaction applies the one-reaction-per-user toggle algorithm:
	// same emoji removes the row, a different emoji replaces any prior
	// row(s) by this user on the message.
	ToggleReaction(ctx context.Context, messageID, userID, emoji string) (ToggleResult, error)
}

// ConversationStore covers conversation metadata and membership.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	FetchConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	// FindDirect returns the unique 1:1 conversation between two users, or
	// nil when none exists.
	FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error)
	CreateDirect(ctx context.Context, userA, userB string) (*model.Conversation, error)
	CreateGroup(ctx context.Context, name string, participants []string, adminID string) (*model.Conversation, error)

	UpdateSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error

	AddParticipant(ctx context.Context, conversationID, userID string) error
	RemoveParticipant(ctx context.Context, conversationID, userID string) error

	// LeaveGroup removes userID from the group. The admin may not leave; a
	// group left empty is deleted.
	LeaveGroup(ctx context.Context, conversationID, userID string) error

	// TransferAdmin reassigns the group admin and notifies participants
	// through a conversation update event.
	TransferAdmin(ctx context.Context, conversationID, byUserID, newAdminID string) error

	DeleteConversation(ctx context.Context, conversationID, byUserID string) error
}

// PresenceStore covers user lookups, heartbeats and typing broadcasts.
type PresenceStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)

	// Heartbeat bumps the user's lastSeen timestamp. Fire-and-forget:
	// callers ignore the error beyond logging.
	Heartbeat(ctx context.Context, userID string) error

	// SetTyping upserts the ephemeral typing row for (conversation, user).
	SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error
}

// Store is the full backend surface.
type Store interface {
	MessageStore
	ReactionStore
	ConversationStore
	PresenceStore
}
