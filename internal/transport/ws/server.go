package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
)

// SessionLookup resolves a session before a subscriber is accepted.
type SessionLookup func(ctx context.Context, sessionID string) (*domain.Session, error)

// Server upgrades HTTP requests into session stream subscriptions.
type Server struct {
	hub      *Hub
	lookup   SessionLookup
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(h *Hub, lookup SessionLookup, logger *slog.Logger) *Server {
	return &Server{
		hub:    h,
		lookup: lookup,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// local-only service
				return true
			},
		},
	}
}

// HandleStream subscribes the caller to GET /v1/sessions/:session_id/stream.
func (s *Server) HandleStream(c echo.Context) error {
	sessionID := c.Param("session_id")
	if _, err := s.lookup(c.Request().Context(), sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: err.Error(), Code: "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: err.Error()})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "session_id", sessionID, "error", err)
		return nil
	}

	conn := s.hub.NewConnection(ws, sessionID)
	s.hub.Register(conn)
	ws.SetReadLimit(maxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump drains the connection so pongs and close frames are processed.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed", "conn_id", conn.ID, "error", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug("failed to write stream message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
