package model

import "time"

// Message represents a chat message document.
type Message struct {
	ID              string    `json:"id" bson:"_id,omitempty"`
	ConversationID  string    `json:"conversationId" bson:"conversation_id"`
	Sender          *string   `json:"sender" bson:"sender"` // nil for system messages
	Content         string    `json:"content" bson:"content"`
	Attachment      string    `json:"attachment,omitempty" bson:"attachment,omitempty"`
	ReplyTo         string    `json:"replyTo,omitempty" bson:"reply_to,omitempty"`
	IsSystemMessage bool      `json:"isSystemMessage" bson:"is_system_message"`
	IsForwarded     bool      `json:"isForwarded" bson:"is_forwarded"`
	IsCodeSnippet   bool      `json:"isCodeSnippet" bson:"is_code_snippet"`
	CodeLanguage    string    `json:"codeLanguage,omitempty" bson:"code_language,omitempty"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at"`
	Read            bool      `json:"read" bson:"read"`
}

// SenderID returns the sender id, or "" for system messages.
func (m *Message) SenderID() string {
	if m.Sender == nil {
		return ""
	}
	return *m.Sender
}

// SentBy reports whether the message was sent by the given user.
// System messages belong to nobody.
func (m *Message) SentBy(userID string) bool {
	return m.Sender != nil && *m.Sender == userID
}

// Before orders messages by creation time, falling back to id so that
// two messages created in the same instant still sort deterministically.
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// Preview returns the conversation-summary line for this message, the same
// text shown in the sidebar under the conversation name.
func (m *Message) Preview() string {
	switch {
	case m.Content != "":
		return m.Content
	case m.IsCodeSnippet:
		return "Code Snippet"
	case m.Attachment != "":
		return m.Attachment
	default:
		return ""
	}
}
