package runtime

import (
	"context"
	"testing"

	"chatcore/domain/chat"
	"chatcore/domain/event"

	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, env event.Envelope) error {
	return nil
}

func TestRegistry_Register_One_User_One_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := chat.UserID("alice")
	convID := chat.ConversationID("conv-1")
	sink := Sink{name: "alice-phone"}

	// Given no session is connected
	req.Empty(registry.SessionsForUser(userID))
	req.Empty(registry.SessionsInRoom(convID))

	// When the user registers and joins a room
	sessionID := registry.Register(userID, sink)
	registry.JoinRoom(sessionID, convID)

	// Then the session is reachable both by user and by room
	req.Len(registry.SessionsForUser(userID), 1)
	req.Contains(registry.SessionsForUser(userID), sink)
	req.Len(registry.SessionsInRoom(convID), 1)
	req.Contains(registry.SessionsInRoom(convID), sink)
}

func TestRegistry_Register_Multiple_Devices_Same_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := chat.UserID("alice")
	phone := Sink{name: "phone"}
	laptop := Sink{name: "laptop"}

	// When the same user registers twice
	registry.Register(userID, phone)
	registry.Register(userID, laptop)

	// Then both sessions are live
	sinks := registry.SessionsForUser(userID)
	req.Len(sinks, 2)
	req.Contains(sinks, phone)
	req.Contains(sinks, laptop)
}

func TestRegistry_Unregister_Removes_Room_Memberships(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := chat.UserID("alice")
	convID := chat.ConversationID("conv-1")
	sink := Sink{}

	// Given a registered session joined to a room
	sessionID := registry.Register(userID, sink)
	registry.JoinRoom(sessionID, convID)

	// When the session unregisters
	registry.Unregister(sessionID)

	// Then neither the user nor the room can reach it
	req.Empty(registry.SessionsForUser(userID))
	req.Empty(registry.SessionsInRoom(convID))
}

func TestRegistry_Unregister_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := registry.Register(chat.UserID("alice"), Sink{})

	// When unregistering twice
	registry.Unregister(sessionID)
	registry.Unregister(sessionID)

	// Then nothing is left and nothing panicked
	req.Empty(registry.SessionsForUser(chat.UserID("alice")))
}

func TestRegistry_JoinRoom_Unknown_Session_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	convID := chat.ConversationID("conv-1")

	// When joining with an id that was never registered
	registry.JoinRoom("ghost", convID)

	// Then the room stays empty
	req.Empty(registry.SessionsInRoom(convID))
}

func TestRegistry_LeaveRoom_Keeps_Session_Alive(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := chat.UserID("alice")
	convID := chat.ConversationID("conv-1")

	sessionID := registry.Register(userID, Sink{})
	registry.JoinRoom(sessionID, convID)

	// When leaving the room
	registry.LeaveRoom(sessionID, convID)

	// Then the room no longer targets the session but the user is still reachable
	req.Empty(registry.SessionsInRoom(convID))
	req.Len(registry.SessionsForUser(userID), 1)
}
