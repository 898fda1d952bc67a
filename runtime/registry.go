// Package runtime owns the live side of the system: session registry,
// typing presence, event routing, and the supervised background workers.
// It carries no business rules; those live in the service layer.
package runtime

import (
	"sync"

	"chatcore/contract"
	"chatcore/domain/chat"

	"github.com/google/uuid"
)

type set map[contract.SessionID]struct{}

type session struct {
	user  chat.UserID
	sink  contract.EventSink
	rooms map[chat.ConversationID]struct{}
}

// Registry maps authenticated users to live sessions and sessions to the
// conversation rooms they joined. One coarse RWMutex with short hold times;
// no lock is ever held across a send or a storage call.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[contract.SessionID]*session
	userSessions map[chat.UserID]set
	roomMembers  map[chat.ConversationID]set
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[contract.SessionID]*session),
		userSessions: make(map[chat.UserID]set),
		roomMembers:  make(map[chat.ConversationID]set),
	}
}

// Register creates a new live session for a user. Prior sessions are kept:
// multiple devices per user are legal.
func (r *Registry) Register(userID chat.UserID, sink contract.EventSink) contract.SessionID {
	id := contract.SessionID(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[id] = &session{
		user:  userID,
		sink:  sink,
		rooms: make(map[chat.ConversationID]struct{}),
	}
	if _, ok := r.userSessions[userID]; !ok {
		r.userSessions[userID] = make(set)
	}
	r.userSessions[userID][id] = struct{}{}
	return id
}

// Unregister removes a session and all its room memberships. Idempotent:
// unknown ids are a no-op, since disconnects can race with deliveries.
func (r *Registry) Unregister(id contract.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	for room := range s.rooms {
		r.removeFromRoom(id, room)
	}
	if siblings, ok := r.userSessions[s.user]; ok {
		delete(siblings, id)
		if len(siblings) == 0 {
			delete(r.userSessions, s.user)
		}
	}
	delete(r.sessions, id)
}

// JoinRoom associates a session with a conversation for broadcast
// targeting. Unknown sessions are ignored.
func (r *Registry) JoinRoom(id contract.SessionID, conv chat.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.rooms[conv] = struct{}{}
	if _, ok := r.roomMembers[conv]; !ok {
		r.roomMembers[conv] = make(set)
	}
	r.roomMembers[conv][id] = struct{}{}
}

func (r *Registry) LeaveRoom(id contract.SessionID, conv chat.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(s.rooms, conv)
	r.removeFromRoom(id, conv)
}

// removeFromRoom cleans the room index and drops empty rooms so the map
// never leaks entries for dead conversations. Caller holds the lock.
func (r *Registry) removeFromRoom(id contract.SessionID, conv chat.ConversationID) {
	members, ok := r.roomMembers[conv]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.roomMembers, conv)
	}
}

// SessionsForUser returns every live sink of a user, for direct delivery
// regardless of room membership (unread badges). Empty for unknown users.
func (r *Registry) SessionsForUser(userID chat.UserID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.userSessions[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(ids))
	for id := range ids {
		if s, exists := r.sessions[id]; exists {
			sinks = append(sinks, s.sink)
		}
	}
	return sinks
}

// SessionsInRoom returns the sinks of every session currently joined to a
// conversation, the broadcast target set. Empty for unknown rooms.
func (r *Registry) SessionsInRoom(conv chat.ConversationID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[conv]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for id := range members {
		if s, exists := r.sessions[id]; exists {
			sinks = append(sinks, s.sink)
		}
	}
	return sinks
}
