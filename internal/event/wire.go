package event

// Feed control ops - client to server frames on the feed socket.
const (
	// OpSubscribe - start delivery of a (resource, conversation) stream
	OpSubscribe = "subscribe"

	// OpUnsubscribe - stop delivery of a (resource, conversation) stream
	OpUnsubscribe = "unsubscribe"
)

// ControlFrame is what a feed client sends over the socket to manage its
// subscription set. Server-to-client traffic is ChangeEvent frames only.
type ControlFrame struct {
	Op             string `json:"op"`
	Resource       string `json:"resource"`
	ConversationID string `json:"conversationId"`
}
