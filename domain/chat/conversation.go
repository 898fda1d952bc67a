// Package chat holds the core entities of the messaging domain.
// Entities are plain values; all mutation goes through the service layer.
package chat

import (
	"sort"
	"strings"
	"time"
)

type UserID string
type ConversationID string
type MessageID string

type Conversation struct {
	ID           ConversationID
	Name         string
	Description  string
	AvatarURL    string
	IsGroup      bool
	Participants []UserID
	CreatedBy    UserID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
	ArchivedAt   *time.Time
}

func (c Conversation) Deleted() bool {
	return c.DeletedAt != nil
}

func (c Conversation) Archived() bool {
	return c.ArchivedAt != nil
}

func (c Conversation) HasParticipant(id UserID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// DirectKey canonicalizes an unordered user pair into the lookup key used
// to guarantee at most one direct conversation per pair.
func DirectKey(a, b UserID) string {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return strings.Join(pair, "/")
}
