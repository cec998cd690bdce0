package web

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Status page and polling endpoint (public)
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/status", s.handleStatus)

	// Commands (basic auth when configured)
	s.echo.POST("/action", s.handleAction, s.actionMiddleware()...)
}
