package contract

import (
	"context"
	"reflect"

	"chatcore/domain/chat"
	"chatcore/domain/event"
)

// SessionID identifies one live transport session. A user may hold several
// (one per device).
type SessionID string

// EventSink is the delivery end of a live session. Consume must never block
// the caller: implementations drop rather than stall.
type EventSink interface {
	Consume(ctx context.Context, env event.Envelope) error
}

// IRegistry is the sole authority for "who is currently reachable".
// Operations on unknown ids are no-ops returning empty results, since
// sessions can race with disconnects.
type IRegistry interface {
	Register(userID chat.UserID, sink EventSink) SessionID
	Unregister(id SessionID)
	JoinRoom(id SessionID, conv chat.ConversationID)
	LeaveRoom(id SessionID, conv chat.ConversationID)
	SessionsForUser(userID chat.UserID) []EventSink
	SessionsInRoom(conv chat.ConversationID) []EventSink
}

// IPresence owns ephemeral typing state per conversation.
type IPresence interface {
	SetTyping(conv chat.ConversationID, user chat.UserID)
	ClearTyping(conv chat.ConversationID, user chat.UserID)
	ActiveTypers(conv chat.ConversationID) []chat.UserID
}

// DeliveryObserver receives per-delivery outcomes from the router so that
// best-effort sends stay observable without being propagated.
type DeliveryObserver interface {
	Delivered()
	Dropped()
	Failed()
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; the supervisor recovers panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging and supervision without manual naming.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
