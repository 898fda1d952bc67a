// Package event defines the domain events pushed to live sessions and the
// wire envelope wrapping them.
package event

import (
	"time"

	"chatcore/domain/chat"
)

// DomainEvent is anything the router can deliver. Each event knows its
// originating conversation so the router can resolve the broadcast room.
type DomainEvent interface {
	Conversation() chat.ConversationID
	Type() string
}

type MessageCreated struct {
	Message chat.Message `json:"message"`
}

func (e MessageCreated) Conversation() chat.ConversationID { return e.Message.ConversationID }
func (e MessageCreated) Type() string                      { return "new_message" }

type MessageEdited struct {
	Message chat.Message `json:"message"`
}

func (e MessageEdited) Conversation() chat.ConversationID { return e.Message.ConversationID }
func (e MessageEdited) Type() string                      { return "message_edited" }

type MessageDeleted struct {
	MessageID      chat.MessageID      `json:"message_id"`
	ConversationID chat.ConversationID `json:"conversation_id"`
}

func (e MessageDeleted) Conversation() chat.ConversationID { return e.ConversationID }
func (e MessageDeleted) Type() string                      { return "message_deleted" }

type MessageRead struct {
	MessageID      chat.MessageID      `json:"message_id"`
	ConversationID chat.ConversationID `json:"conversation_id"`
	UserID         chat.UserID         `json:"user_id"`
	ReadBy         []chat.UserID       `json:"read_by"`
}

func (e MessageRead) Conversation() chat.ConversationID { return e.ConversationID }
func (e MessageRead) Type() string                      { return "message_read" }

type ConversationRead struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
	UserID         chat.UserID         `json:"user_id"`
	Count          int                 `json:"count"`
}

func (e ConversationRead) Conversation() chat.ConversationID { return e.ConversationID }
func (e ConversationRead) Type() string                      { return "conversation_read" }

type TypingChanged struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
	UserID         chat.UserID         `json:"user_id"`
	Typing         bool                `json:"typing"`
	Typers         []chat.UserID       `json:"typers"`
}

func (e TypingChanged) Conversation() chat.ConversationID { return e.ConversationID }
func (e TypingChanged) Type() string                      { return "typing" }

type ConversationCreated struct {
	Conv chat.Conversation `json:"conversation"`
}

func (e ConversationCreated) Conversation() chat.ConversationID { return e.Conv.ID }
func (e ConversationCreated) Type() string                      { return "conversation_created" }

type ConversationUpdated struct {
	Conv chat.Conversation `json:"conversation"`
}

func (e ConversationUpdated) Conversation() chat.ConversationID { return e.Conv.ID }
func (e ConversationUpdated) Type() string                      { return "conversation_updated" }

type ConversationDeleted struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
}

func (e ConversationDeleted) Conversation() chat.ConversationID { return e.ConversationID }
func (e ConversationDeleted) Type() string                      { return "conversation_deleted" }

// ReactionAdded is broadcast-only: reactions are never persisted, mirroring
// the REST surface which acknowledges them without a write.
type ReactionAdded struct {
	MessageID      chat.MessageID      `json:"message_id"`
	ConversationID chat.ConversationID `json:"conversation_id"`
	UserID         chat.UserID         `json:"user_id"`
	Emoji          string              `json:"emoji"`
	ReactedAt      time.Time           `json:"reacted_at"`
}

func (e ReactionAdded) Conversation() chat.ConversationID { return e.ConversationID }
func (e ReactionAdded) Type() string                      { return "reaction" }

// UnreadChanged is a per-user badge update delivered to all of the user's
// sessions regardless of room membership.
type UnreadChanged struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
	UserID         chat.UserID         `json:"user_id"`
	Unread         int                 `json:"unread"`
}

func (e UnreadChanged) Conversation() chat.ConversationID { return e.ConversationID }
func (e UnreadChanged) Type() string                      { return "unread_count" }
