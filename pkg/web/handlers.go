package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-signlens/pkg/hub"
	"github.com/teslashibe/go-signlens/pkg/session"
)

// ActionResponse is returned by every state-changing endpoint.
type ActionResponse struct {
	State session.State `json:"state"`
	Error string        `json:"error,omitempty"`
}

// HealthResponse reports liveness and camera status.
type HealthResponse struct {
	Status string        `json:"status"`
	Camera bool          `json:"camera"`
	Phase  session.Phase `json:"phase"`
}

// handleState returns the current session state
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.State())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "ok",
		Camera: s.ctrl.CameraLive(),
		Phase:  s.ctrl.State().Phase,
	})
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	return s.respond(c, s.ctrl.Toggle(c.UserContext()))
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	return s.respond(c, s.ctrl.Start(c.UserContext()))
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	return s.respond(c, s.ctrl.Stop(c.UserContext()))
}

// handleCamera retries camera access
func (s *Server) handleCamera(c *fiber.Ctx) error {
	return s.respond(c, s.ctrl.Open(c.UserContext()))
}

// respond writes the post-action state with a status derived from err.
func (s *Server) respond(c *fiber.Ctx, err error) error {
	resp := ActionResponse{State: s.ctrl.State()}
	if err == nil {
		return c.JSON(resp)
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	resp.Error = err.Error()
	if resp.State.Phase == session.PhaseError && resp.State.Message != "" {
		resp.Error = resp.State.Message
	}
	return c.Status(status).JSON(resp)
}

func statusFor(err error) int {
	switch {
	case session.IsTransition(err):
		return http.StatusConflict
	case errors.Is(err, session.ErrDeviceAccess):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrEmptyBatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleStateWS sends the current state, then every change.
func (s *Server) handleStateWS(c *websocket.Conn) {
	client := hub.NewClient(s.stateHub, c)
	if client == nil {
		return
	}
	// Nothing else writes to c until Run starts the write pump.
	if err := sendInitial(c, s.ctrl.State()); err != nil {
		s.logger.Debug("state socket closed before first message", "error", err)
		s.stateHub.Remove(client)
		c.Close()
		return
	}
	client.Run()
}

// handlePreviewWS streams binary JPEG preview frames.
func (s *Server) handlePreviewWS(c *websocket.Conn) {
	client := hub.NewClient(s.previewHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// sendInitial writes the current state as the first text frame.
func sendInitial(w interface {
	WriteMessage(messageType int, data []byte) error
}, st session.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return w.WriteMessage(websocket.TextMessage, data)
}
