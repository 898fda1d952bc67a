package sink

import (
	"context"
	"testing"

	"chatcore/domain/event"

	"github.com/stretchr/testify/require"
)

func TestSessionSink_Consume_Buffers_Event(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(2)

	// When consuming within capacity
	err := s.Consume(context.Background(), event.Envelope{Type: "new_message"})
	req.NoError(err)

	// Then the event is waiting on the channel
	env := <-s.Events
	req.Equal("new_message", env.Type)
}

func TestSessionSink_Full_Buffer_Drops_Instead_Of_Blocking(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(1)

	req.NoError(s.Consume(context.Background(), event.Envelope{Type: "first"}))

	// When the buffer is full
	err := s.Consume(context.Background(), event.Envelope{Type: "second"})

	// Then the call returns immediately with the drop sentinel
	req.ErrorIs(err, ErrSlowConsumer)
}

func TestSessionSink_Canceled_Context_Wins_Over_Drop(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(1)
	req.NoError(s.Consume(context.Background(), event.Envelope{Type: "filler"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Consume(ctx, event.Envelope{Type: "late"})
	req.ErrorIs(err, context.Canceled)
}
