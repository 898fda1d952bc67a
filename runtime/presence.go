package runtime

import (
	"sync"
	"time"

	"chatcore/domain/chat"
)

// Presence tracks who is typing in which conversation. Entries carry a
// wall-clock expiry compared at read time; there are no per-entry timers.
// Expired entries are purged lazily on read, plus periodically by the
// janitor worker for memory hygiene.
type Presence struct {
	mu     sync.Mutex
	ttl    time.Duration
	typers map[chat.ConversationID]map[chat.UserID]time.Time
	now    func() time.Time
}

func NewPresence(ttl time.Duration) *Presence {
	return &Presence{
		ttl:    ttl,
		typers: make(map[chat.ConversationID]map[chat.UserID]time.Time),
		now:    time.Now,
	}
}

// SetTyping (re)inserts the user with a refreshed expiry.
func (p *Presence) SetTyping(conv chat.ConversationID, user chat.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.typers[conv]; !ok {
		p.typers[conv] = make(map[chat.UserID]time.Time)
	}
	p.typers[conv][user] = p.now().Add(p.ttl)
}

// ClearTyping removes the user explicitly ("stopped typing" signal).
func (p *Presence) ClearTyping(conv chat.ConversationID, user chat.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if users, ok := p.typers[conv]; ok {
		delete(users, user)
		if len(users) == 0 {
			delete(p.typers, conv)
		}
	}
}

// ActiveTypers returns the users whose entries have not expired, purging
// the ones that have.
func (p *Presence) ActiveTypers(conv chat.ConversationID) []chat.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.typers[conv]
	if !ok {
		return nil
	}
	now := p.now()
	var active []chat.UserID
	for user, expiry := range users {
		if expiry.After(now) {
			active = append(active, user)
		} else {
			delete(users, user)
		}
	}
	if len(users) == 0 {
		delete(p.typers, conv)
	}
	return active
}

// Sweep drops every expired entry. Called by the presence janitor so idle
// conversations don't pin memory between reads.
func (p *Presence) Sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for conv, users := range p.typers {
		for user, expiry := range users {
			if !expiry.After(now) {
				delete(users, user)
			}
		}
		if len(users) == 0 {
			delete(p.typers, conv)
		}
	}
}
