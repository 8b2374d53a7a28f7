package model

import "unicode/utf8"

// ReplySnippet is the lightweight preview attached to a message that quotes
// another. When the quoted message is not known locally (deleted, or outside
// the loaded window) the snippet renders the fallback instead of failing.
type ReplySnippet struct {
	MessageID  string `json:"messageId"`
	SenderName string `json:"senderName"`
	Preview    string `json:"preview"`
	Available  bool   `json:"available"`
}

// ReplyUnavailable is the neutral fallback preview for dangling reply
// references.
const ReplyUnavailable = "Message unavailable"

const replyPreviewLimit = 80

// MessageView is a message annotated for rendering: resolved attachment URL,
// reply snippet and grouped reactions. Views are what the sync engine exposes
// to the UI layer.
type MessageView struct {
	Message
	AttachmentURL string            `json:"attachmentUrl,omitempty"`
	Reply         *ReplySnippet     `json:"reply,omitempty"`
	Reactions     []GroupedReaction `json:"reactions,omitempty"`
}

// SnippetOf builds a reply snippet from a locally-known target message.
func SnippetOf(target *Message, senderName string) *ReplySnippet {
	preview := target.Preview()
	if len(preview) > replyPreviewLimit {
		// cut on a rune boundary, never mid-sequence
		cut := replyPreviewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	return &ReplySnippet{
		MessageID:  target.ID,
		SenderName: senderName,
		Preview:    preview,
		Available:  true,
	}
}

// DanglingSnippet builds the fallback snippet for an unknown reply target.
func DanglingSnippet(messageID string) *ReplySnippet {
	return &ReplySnippet{
		MessageID: messageID,
		Preview:   ReplyUnavailable,
	}
}
