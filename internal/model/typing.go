package model

import "time"

// TypingStatus is an ephemeral per-(conversation, user) row that is
// continuously overwritten, never retained historically. A row older than a
// short TTL must be treated as not typing regardless of the stored flag.
type TypingStatus struct {
	ID             string    `json:"id" bson:"_id,omitempty"`
	ConversationID string    `json:"conversation" bson:"conversation_id"`
	UserID         string    `json:"user" bson:"user_id"`
	IsTyping       bool      `json:"isTyping" bson:"is_typing"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}
