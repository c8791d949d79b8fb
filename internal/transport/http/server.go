// Package http provides the HTTP server of the context tracker.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Pythonista7/context-tracker-backend/internal/service"
	v1 "github.com/Pythonista7/context-tracker-backend/internal/transport/http/v1"
	"github.com/Pythonista7/context-tracker-backend/internal/transport/ws"
)

// NewServer creates and configures the HTTP server.
func NewServer(svc *service.Service, stream *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc, stream).RegisterRoutes(e)

	return e
}
