package event

import (
	"time"

	"chatcore/domain/chat"
)

// Envelope is the wire wrapper pushed to a live session. Payload is the
// event itself and serializes through its json tags.
type Envelope struct {
	Type           string              `json:"type"`
	ConversationID chat.ConversationID `json:"conversation_id"`
	Payload        any                 `json:"payload"`
	Timestamp      time.Time           `json:"timestamp"`
}

func ToEnvelope(e DomainEvent) Envelope {
	return Envelope{
		Type:           e.Type(),
		ConversationID: e.Conversation(),
		Payload:        e,
		Timestamp:      time.Now().UTC(),
	}
}
