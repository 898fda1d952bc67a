package runtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"chatcore/contract"
	"chatcore/domain/chat"
	"chatcore/domain/event"
	"chatcore/sink"
)

// Router turns a committed domain event into best-effort deliveries.
// It resolves the recipient set through the registry, wraps the event in
// an envelope, and pushes it to each live sink. A failed or dropped
// delivery is counted and logged, never propagated: the mutation behind
// the event is already committed and offline recipients read the store.
type Router struct {
	log      *slog.Logger
	registry contract.IRegistry
	presence contract.IPresence
	observer contract.DeliveryObserver
	timeout  time.Duration
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, presence contract.IPresence,
	observer contract.DeliveryObserver, timeout time.Duration) *Router {
	return &Router{
		log:      log,
		registry: registry,
		presence: presence,
		observer: observer,
		timeout:  timeout,
	}
}

// Broadcast delivers an event to every session joined to its conversation
// room. An empty room is the normal offline case, not an error.
func (r *Router) Broadcast(ctx context.Context, e event.DomainEvent) {
	env := event.ToEnvelope(e)
	for _, s := range r.registry.SessionsInRoom(e.Conversation()) {
		r.deliver(ctx, s, env)
	}
}

// NotifyUser delivers an event to all of one user's sessions regardless of
// room membership, used for cross-conversation notifications.
func (r *Router) NotifyUser(ctx context.Context, user chat.UserID, e event.DomainEvent) {
	env := event.ToEnvelope(e)
	for _, s := range r.registry.SessionsForUser(user) {
		r.deliver(ctx, s, env)
	}
}

// NotifyParticipants fans a conversation-level event out to each
// participant's personal sessions.
func (r *Router) NotifyParticipants(ctx context.Context, conv chat.Conversation, e event.DomainEvent) {
	for _, p := range conv.Participants {
		r.NotifyUser(ctx, p, e)
	}
}

// BroadcastTyping consults the presence tracker for the current typer set
// and broadcasts the change to the room.
func (r *Router) BroadcastTyping(ctx context.Context, conv chat.ConversationID, user chat.UserID, typing bool) {
	r.Broadcast(ctx, event.TypingChanged{
		ConversationID: conv,
		UserID:         user,
		Typing:         typing,
		Typers:         r.presence.ActiveTypers(conv),
	})
}

// deliver pushes one envelope to one sink under the delivery timeout.
// Failure here must not block or fail delivery to the remaining sinks.
func (r *Router) deliver(ctx context.Context, s contract.EventSink, env event.Envelope) {
	sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := s.Consume(sendCtx, env)
	switch {
	case err == nil:
		r.observer.Delivered()
	case stderrors.Is(err, sink.ErrSlowConsumer):
		r.observer.Dropped()
		r.log.Debug("event dropped, session buffer full", "type", env.Type)
	default:
		r.observer.Failed()
		r.log.Warn("event delivery failed", "type", env.Type, "error", err)
	}
}
