package handler

import (
	"net/http"

	"guesswho-server/internal/auth"
	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the client domains are fixed.
		return true
	},
}

// WSHandler upgrades authenticated requests to the game update feed.
type WSHandler struct {
	manager    *ws.ConnectionManager
	verifier   *auth.JWTVerifier
	playerRepo interfaces.PlayerRepository
	logger     *zap.Logger
}

// NewWSHandler creates the websocket handler.
func NewWSHandler(manager *ws.ConnectionManager, verifier *auth.JWTVerifier, playerRepo interfaces.PlayerRepository, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		manager:    manager,
		verifier:   verifier,
		playerRepo: playerRepo,
		logger:     logger.Named("WSHandler"),
	}
}

// RegisterRoutes mounts the websocket endpoint. The token travels in a query
// parameter because browsers cannot set headers on websocket upgrades.
func (h *WSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.serveWS)
}

func (h *WSHandler) serveWS(c echo.Context) error {
	req := c.Request()
	tokenString := c.QueryParam("token")
	if tokenString == "" {
		h.logger.Warn("Missing 'token' query parameter")
		return c.JSON(http.StatusUnauthorized, APIError{Message: "Unauthorized: Missing token"})
	}

	claims, err := h.verifier.VerifyToken(req.Context(), tokenString)
	if err != nil {
		h.logger.Warn("Invalid websocket token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, APIError{Message: "Unauthorized: Invalid token"})
	}

	player, err := h.playerRepo.GetByExternalID(req.Context(), nil, claims.Subject)
	if err != nil {
		return handleServiceError(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Stringer("playerID", player.ID), zap.Error(err))
		// The upgrader already wrote the error response.
		return nil
	}

	h.logger.Info("WebSocket connection established", zap.Stringer("playerID", player.ID))

	client := ws.NewClient(player.ID.String(), conn)
	h.manager.RegisterClient(client)
	client.Start(h.manager, h.logger)
	return nil
}
