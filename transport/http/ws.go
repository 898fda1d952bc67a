package http

import (
	"context"
	"encoding/json"
	"time"

	"chatcore/contract"
	"chatcore/domain/chat"
	"chatcore/domain/event"
	"chatcore/errors"
	"chatcore/sink"

	"github.com/gofiber/contrib/websocket"
)

// clientMessage is the inbound wire format: a type tag and a payload the
// dispatcher decodes per type.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
	Content        string              `json:"content"`
	ContentType    chat.ContentType    `json:"content_type"`
	MediaURL       string              `json:"media_url"`
}

type editMessagePayload struct {
	MessageID chat.MessageID `json:"message_id"`
	Content   string         `json:"content"`
}

type messageRefPayload struct {
	MessageID chat.MessageID `json:"message_id"`
}

type typingPayload struct {
	ConversationID chat.ConversationID `json:"conversation_id"`
	Typing         bool                `json:"typing"`
}

// handleWebSocket runs one live session: authenticate, register a sink,
// then pump events out and client commands in until the peer goes away.
// The read loop is the connection's goroutine; a second goroutine drains
// the sink so slow sockets never block the router.
func (s *Server) handleWebSocket(conn *websocket.Conn) {
	defer conn.Close()

	userID, err := s.auth.VerifyToken(conn.Query("token"))
	if err != nil {
		_ = conn.WriteJSON(event.Envelope{
			Type:      "error",
			Payload:   "authentication failed",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	snk := sink.NewSessionSink(s.bufferSize)
	sessionID := s.registry.Register(userID, snk)
	s.log.Info("websocket session opened", "user_id", userID, "session_id", sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		s.registry.Unregister(sessionID)
		cancel()
		s.log.Info("websocket session closed", "user_id", userID, "session_id", sessionID)
	}()

	// Writer: the only goroutine touching the socket for sends.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-snk.Events:
				if err := conn.WriteJSON(env); err != nil {
					s.log.Debug("websocket write failed", "session_id", sessionID, "error", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.dispatch(ctx, sessionID, userID, msg); err != nil {
			s.sendError(ctx, snk, msg.Type, err)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sessionID contract.SessionID, userID chat.UserID, msg clientMessage) error {
	switch msg.Type {
	case "join":
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		conv, err := s.chat.GetConversation(ctx, p.ConversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(userID) {
			return errors.ErrForbidden
		}
		s.registry.JoinRoom(sessionID, p.ConversationID)
		return nil

	case "leave":
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		s.registry.LeaveRoom(sessionID, p.ConversationID)
		s.presence.ClearTyping(p.ConversationID, userID)
		return nil

	case "send_message":
		var p sendMessagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		m, err := s.chat.CreateMessage(ctx, chat.CreateMessageCommand{
			ConversationID: p.ConversationID,
			SenderID:       userID,
			Content:        p.Content,
			ContentType:    p.ContentType,
			MediaURL:       p.MediaURL,
		})
		if err != nil {
			return err
		}
		// Sending ends any typing indicator for the sender.
		s.presence.ClearTyping(m.ConversationID, userID)
		s.router.BroadcastTyping(ctx, m.ConversationID, userID, false)
		s.publishNewMessage(ctx, m)
		return nil

	case "edit_message":
		var p editMessagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		m, err := s.chat.EditMessage(ctx, p.MessageID, userID, p.Content)
		if err != nil {
			return err
		}
		s.router.Broadcast(ctx, event.MessageEdited{Message: m})
		return nil

	case "delete_message":
		var p messageRefPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		m, err := s.chat.GetMessage(ctx, p.MessageID)
		if err != nil {
			return err
		}
		if m.SenderID != userID {
			return errors.ErrForbidden
		}
		if err := s.chat.DeleteMessage(ctx, m.ID); err != nil {
			return err
		}
		s.router.Broadcast(ctx, event.MessageDeleted{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
		})
		return nil

	case "message_read":
		var p messageRefPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		m, changed, err := s.chat.MarkMessageRead(ctx, p.MessageID, userID)
		if err != nil {
			return err
		}
		if changed {
			s.publishRead(ctx, m, userID)
		}
		return nil

	case "mark_conversation_read":
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		marked, err := s.chat.MarkConversationRead(ctx, p.ConversationID, userID)
		if err != nil {
			return err
		}
		s.publishConversationRead(ctx, p.ConversationID, userID, len(marked))
		return nil

	case "typing":
		var p typingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		if p.Typing {
			s.presence.SetTyping(p.ConversationID, userID)
		} else {
			s.presence.ClearTyping(p.ConversationID, userID)
		}
		s.router.BroadcastTyping(ctx, p.ConversationID, userID, p.Typing)
		return nil

	default:
		s.log.Debug("unknown websocket message type", "type", msg.Type)
		return nil
	}
}

// sendError routes a command failure back through the session's own sink
// so the writer goroutine stays the single socket writer.
func (s *Server) sendError(ctx context.Context, snk *sink.SessionSink, cmdType string, cmdErr error) {
	env := event.Envelope{
		Type: "error",
		Payload: map[string]string{
			"command": cmdType,
			"detail":  cmdErr.Error(),
		},
		Timestamp: time.Now().UTC(),
	}
	if err := snk.Consume(ctx, env); err != nil {
		s.log.Debug("error reply dropped", "command", cmdType, "error", err)
	}
}
