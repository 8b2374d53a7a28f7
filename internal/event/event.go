package event

import "encoding/json"

// Feed resources. Each resource is an independent change stream; events for
// the same resource are delivered in order, no ordering is guaranteed across
// resources.
const (
	// ResourceMessages - message create/update/delete events
	ResourceMessages = "messages"

	// ResourceReactions - reaction row create/update/delete events
	ResourceReactions = "reactions"

	// ResourceTyping - ephemeral typing status events
	ResourceTyping = "typing_status"

	// ResourceConversations - conversation metadata events
	ResourceConversations = "conversations"
)

// Change actions, tagged on every feed event.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ChangeEvent is a push notification of a create/update/delete on a single
// record of a feed resource. ConversationID carries the routing key; Record
// holds the affected document encoded as JSON.
type ChangeEvent struct {
	Resource       string          `json:"resource"`
	Action         string          `json:"action"`
	ConversationID string          `json:"conversationId"`
	Record         json.RawMessage `json:"record"`
}

// Decode unmarshals the event record into v.
func (e *ChangeEvent) Decode(v any) error {
	return json.Unmarshal(e.Record, v)
}

// NewChange builds a ChangeEvent from a record, panicking on marshal failure
// since all record types in this module are plain JSON-encodable structs.
func NewChange(resource, action, conversationID string, record any) ChangeEvent {
	raw, err := json.Marshal(record)
	if err != nil {
		panic("event: unencodable record: " + err.Error())
	}
	return ChangeEvent{
		Resource:       resource,
		Action:         action,
		ConversationID: conversationID,
		Record:         raw,
	}
}

// Sink accepts change events for delivery to feed subscribers. The hub
// implements Sink on the server; tests use in-memory sinks.
type Sink interface {
	Publish(ev ChangeEvent)
}
