package model

import "time"

// Conversation represents a chat conversation document. A direct (1:1)
// conversation has exactly two participants and no group metadata; a group
// has one admin who is always a participant.
type Conversation struct {
	ID               string    `json:"id" bson:"_id,omitempty"`
	IsGroup          bool      `json:"isGroup" bson:"is_group"`
	Participants     []string  `json:"participants" bson:"participants"`
	GroupName        string    `json:"groupName,omitempty" bson:"group_name,omitempty"`
	GroupDescription string    `json:"groupDescription,omitempty" bson:"group_description,omitempty"`
	GroupIcon        string    `json:"groupIcon,omitempty" bson:"group_icon,omitempty"`
	GroupAdmin       string    `json:"groupAdmin,omitempty" bson:"group_admin,omitempty"`
	AdminOnlyChat    bool      `json:"adminOnlyChat" bson:"admin_only_chat"`
	LastMessage      string    `json:"lastMessage" bson:"last_message"`
	LastMessageTime  time.Time `json:"lastMessageTime" bson:"last_message_time"`
	CreatedAt        time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updated_at"`
}

// HasParticipant reports whether the given user belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the given user is the group admin. Direct
// conversations have no admin.
func (c *Conversation) IsAdmin(userID string) bool {
	return c.IsGroup && c.GroupAdmin == userID
}

// CanPost reports whether the given user may send messages. Admin-only
// groups accept messages from the admin alone; system messages bypass this
// check at the store layer.
func (c *Conversation) CanPost(userID string) bool {
	if c.IsGroup && c.AdminOnlyChat {
		return c.GroupAdmin == userID
	}
	return true
}

// OtherParticipant returns the peer of a direct conversation, or "" for
// groups.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.IsGroup {
		return ""
	}
	for _, id := range c.Participants {
		if id != userID {
			return id
		}
	}
	return ""
}
