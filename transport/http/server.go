// Package http exposes the REST fallback surface and the websocket
// gateway. Handlers are thin pass-throughs: mutate via the chat service,
// then hand the committed result to the event router.
package http

import (
	"log/slog"

	"chatcore/contract"
	"chatcore/runtime"
	"chatcore/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type Server struct {
	log        *slog.Logger
	app        *fiber.App
	chat       services.IChatService
	auth       services.IAuthService
	registry   contract.IRegistry
	presence   contract.IPresence
	router     *runtime.Router
	bufferSize int
	mediaDir   string
}

func NewServer(log *slog.Logger, chat services.IChatService, auth services.IAuthService,
	registry contract.IRegistry, presence contract.IPresence, router *runtime.Router,
	bufferSize int, mediaDir string) *Server {
	s := &Server{
		log:        log,
		chat:       chat,
		auth:       auth,
		registry:   registry,
		presence:   presence,
		router:     router,
		bufferSize: bufferSize,
		mediaDir:   mediaDir,
	}
	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)

	chat := api.Group("/chat", s.requireAuth)
	chat.Get("/conversations", s.handleListConversations)
	chat.Get("/conversations/search", s.handleSearchConversations)
	chat.Post("/conversations", s.handleCreateConversation)
	chat.Get("/conversations/:id", s.handleGetConversation)
	chat.Put("/conversations/:id", s.handleUpdateConversation)
	chat.Delete("/conversations/:id", s.handleDeleteConversation)
	chat.Get("/conversations/:id/messages", s.handleGetMessages)
	chat.Get("/conversations/:id/messages/search", s.handleSearchMessages)
	chat.Get("/conversations/:user_id/dm", s.handleGetOrCreateDM)
	chat.Post("/messages", s.handleCreateMessage)
	chat.Put("/messages/:id", s.handleEditMessage)
	chat.Delete("/messages/:id", s.handleDeleteMessage)
	chat.Post("/messages/:id/read", s.handleMarkMessageRead)
	chat.Post("/messages/:id/react", s.handleReactToMessage)
	chat.Post("/upload", s.handleUpload)

	// Websocket upgrade; the token travels as a query parameter since
	// browsers cannot set headers on websocket dials.
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
