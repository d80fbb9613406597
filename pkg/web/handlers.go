package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/marketscope/voiceagent/pkg/hub"
	"github.com/marketscope/voiceagent/pkg/session"
	"github.com/marketscope/voiceagent/pkg/voice"
)

// stateView is the JSON shape of a controller snapshot. The audio chunk is
// reduced to a level figure; raw samples never cross the API.
type stateView struct {
	State      string                  `json:"state"`
	Provider   string                  `json:"provider,omitempty"`
	Model      string                  `json:"model,omitempty"`
	Error      string                  `json:"error,omitempty"`
	AudioLevel float64                 `json:"audio_level"`
	Transcript []voice.TranscriptEntry `json:"transcript"`
}

func snapshotView(snap session.Snapshot) stateView {
	view := stateView{
		State:      string(snap.State),
		Provider:   string(snap.Provider),
		Model:      snap.Model,
		Transcript: snap.Transcript,
		AudioLevel: audioLevel(snap),
	}
	if snap.Err != nil {
		view.Error = snap.Err.Error()
	}
	if view.Transcript == nil {
		view.Transcript = []voice.TranscriptEntry{}
	}
	return view
}

// audioLevel reduces the rolling audio chunk to a 0..1 peak level for
// visualization.
func audioLevel(snap session.Snapshot) float64 {
	var peak int16
	for _, s := range snap.LastAudio.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return float64(peak) / 32768.0
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(snapshotView(s.controller.Snapshot()))
}

func (s *Server) handleProviders(c *fiber.Ctx) error {
	providers := voice.Providers()
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		out = append(out, string(p))
	}
	return c.JSON(out)
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	snap := s.controller.Snapshot()
	if snap.Transcript == nil {
		snap.Transcript = []voice.TranscriptEntry{}
	}
	return c.JSON(snap.Transcript)
}

func (s *Server) handleClearTranscript(c *fiber.Ctx) error {
	s.controller.ClearTranscript()
	return c.SendStatus(fiber.StatusNoContent)
}

type connectRequest struct {
	Provider string `json:"provider"`
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	var req connectRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := s.controller.Connect(c.Context(), voice.Provider(req.Provider)); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(snapshotView(s.controller.Snapshot()))
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	if err := s.controller.Disconnect(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(snapshotView(s.controller.Snapshot()))
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	if err := s.controller.Toggle(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(snapshotView(s.controller.Snapshot()))
}

// handleEventsWS subscribes a websocket client to the event stream.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.events, conn)
	client.Run()
}
