package chat

import "time"

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeFile  ContentType = "file"
)

type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	Content        string
	ContentType    ContentType
	MediaURL       string
	// ReadBy is the set of users that acknowledged the message.
	// It only ever grows and always contains the sender.
	ReadBy    []UserID
	EditedAt  *time.Time
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

func (m Message) ReadByUser(id UserID) bool {
	for _, u := range m.ReadBy {
		if u == id {
			return true
		}
	}
	return false
}

// MarkRead adds id to the read-by set. Returns false when the user already
// acknowledged the message, making re-marking a no-op.
func (m *Message) MarkRead(id UserID) bool {
	if m.ReadByUser(id) {
		return false
	}
	m.ReadBy = append(m.ReadBy, id)
	return true
}

// UnreadBy reports whether the message counts as unread for the given user:
// not deleted, not authored by the user, and not yet acknowledged.
func (m Message) UnreadBy(id UserID) bool {
	return !m.Deleted() && m.SenderID != id && !m.ReadByUser(id)
}
