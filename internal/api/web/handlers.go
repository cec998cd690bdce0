package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
	"github.com/oshokin/alco-lock/internal/logger"
)

// StatusResponse is the JSON document polled by the page and published over MQTT.
type StatusResponse struct {
	AlcoholDetected bool  `json:"alcohol_detected"`
	RelayActive     bool  `json:"relay_active"`
	Timestamp       int64 `json:"timestamp"`
	Simulation      bool  `json:"simulation"`
}

// NewStatusResponse converts a domain status to the JSON document of GET /status.
func NewStatusResponse(status *domain.Status) StatusResponse {
	return StatusResponse{
		AlcoholDetected: status.AlcoholDetected,
		RelayActive:     status.RelayActive,
		Timestamp:       status.Timestamp.Unix(),
		Simulation:      status.Simulation,
	}
}

// indexData feeds templates/index.html.
type indexData struct {
	// PollMillis is the fetch period used by the page script.
	PollMillis int64
	// PollSeconds is the same period for display.
	PollSeconds string
	// Address is the host (and port) the browser used to reach us.
	Address string
	// Simulation shows the simulate buttons.
	Simulation bool
}

func (s *Server) handleIndex(c echo.Context) error {
	status := s.service.Status(c.Request().Context())

	return c.Render(http.StatusOK, "index.html", indexData{
		PollMillis:  s.options.PollInterval.Milliseconds(),
		PollSeconds: strconv.FormatFloat(s.options.PollInterval.Seconds(), 'f', -1, 64),
		Address:     c.Request().Host,
		Simulation:  status.Simulation,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	status := s.service.Status(c.Request().Context())

	return c.JSON(http.StatusOK, NewStatusResponse(status))
}

// handleAction runs the posted command and always redirects back to the page.
// Rejections and failures are logged only.
func (s *Server) handleAction(c echo.Context) error {
	ctx := c.Request().Context()
	raw := c.FormValue("cmd")

	cmd, ok := domain.ParseCommand(raw)
	if !ok {
		logger.WarnKV(ctx, "Ignoring unknown web command", "cmd", raw, "remote_ip", c.RealIP())

		return c.Redirect(http.StatusFound, "/")
	}

	if _, err := s.service.Execute(ctx, s.actor(c), cmd); err != nil {
		logger.WarnKV(ctx, "Web command not applied", "cmd", string(cmd), "error", err)
	}

	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// actor identifies the web client by remote address and basic-auth user.
func (s *Server) actor(c echo.Context) *domain.Actor {
	username, _ := c.Get(contextKeyUsername).(string)
	if username == "" {
		username = anonymousUsername
	}

	return &domain.Actor{
		Hostname: c.RealIP(),
		Username: username,
	}
}
