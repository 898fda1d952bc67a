// Package sink provides EventSink implementations bridging the router to
// concrete transports.
package sink

import (
	"context"
	"errors"

	"chatcore/domain/event"
)

// ErrSlowConsumer reports that a session's buffer was full and the event
// was dropped. The router counts these; the session is not torn down.
var ErrSlowConsumer = errors.New("session buffer full, event dropped")

// SessionSink decouples the router from a connection's write loop through
// a buffered channel. Consume never blocks: when the buffer is full the
// event is dropped, since the client can resynchronize from the store.
type SessionSink struct {
	Events chan event.Envelope
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{Events: make(chan event.Envelope, bufferSize)}
}

func (s *SessionSink) Consume(ctx context.Context, env event.Envelope) error {
	select {
	case s.Events <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSlowConsumer
	}
}
