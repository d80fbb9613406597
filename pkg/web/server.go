// Package web serves the control dashboard: a REST surface over the session
// controller plus a websocket event stream.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/marketscope/voiceagent/internal/log"
	"github.com/marketscope/voiceagent/pkg/hub"
	"github.com/marketscope/voiceagent/pkg/session"
)

// Server exposes the session controller over HTTP.
type Server struct {
	app        *fiber.App
	port       string
	controller *session.Controller
	events     *hub.Hub
}

// NewServer wires the REST and websocket routes around a controller.
func NewServer(port string, controller *session.Controller) *Server {
	s := &Server{
		port:       port,
		controller: controller,
		events:     hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Voice Agent Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/providers", s.handleProviders)
	api.Get("/transcript", s.handleTranscript)
	api.Delete("/transcript", s.handleClearTranscript)
	api.Post("/connect", s.handleConnect)
	api.Post("/disconnect", s.handleDisconnect)
	api.Post("/toggle", s.handleToggle)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the event hub and blocks serving HTTP.
func (s *Server) Start() error {
	log.Info("dashboard listening", "port", s.port)
	go s.events.Run()
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server error", "err", err)
		}
	}()
}

// PublishSnapshot broadcasts a controller snapshot to event subscribers.
// Suitable as the controller's OnChange hook.
func (s *Server) PublishSnapshot(snap session.Snapshot) {
	if err := s.events.BroadcastJSON(snapshotView(snap)); err != nil {
		log.Debug("snapshot broadcast failed", "err", err)
	}
}

// Events returns the event hub for external publishers.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
