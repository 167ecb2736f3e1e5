// Package middleware holds the echo middleware shared by the HTTP surface.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenVerifier verifies a token string and returns its claims.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

type authErrorResponse struct {
	Message string `json:"message"`
}

// Auth returns echo middleware that verifies the bearer token, resolves the
// external identity to a player record and stores the player in the request
// context. A verified token whose identity has no player record is a 404,
// not a 401: the caller is authenticated but has no profile to play with.
func Auth(verifier TokenVerifier, players interfaces.PlayerRepository, logger *zap.Logger) echo.MiddlewareFunc {
	log := logger.Named("AuthMiddleware")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			authHeader := req.Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Authorization header missing", zap.String("path", req.URL.Path))
				return c.JSON(http.StatusUnauthorized, authErrorResponse{Message: "Unauthorized: Missing token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Malformed Authorization header", zap.String("path", req.URL.Path))
				return c.JSON(http.StatusUnauthorized, authErrorResponse{Message: "Unauthorized: Malformed token header"})
			}
			tokenString := parts[1]

			claims, err := verifier(ctx, tokenString)
			if err != nil {
				msg := "Unauthorized: Invalid token"
				if errors.Is(err, models.ErrTokenExpired) {
					msg = "Unauthorized: Token expired"
				}
				log.Warn("Token verification failed", zap.String("path", req.URL.Path), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, authErrorResponse{Message: msg})
			}

			player, err := players.GetByExternalID(ctx, nil, claims.Subject)
			if err != nil {
				if errors.Is(err, models.ErrProfileNotFound) {
					log.Warn("No player profile for authenticated identity",
						zap.String("subject", claims.Subject))
					return c.JSON(http.StatusNotFound, authErrorResponse{Message: "Player profile not found"})
				}
				log.Error("Failed to resolve player profile", zap.String("subject", claims.Subject), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, authErrorResponse{Message: "Internal server error"})
			}

			ctx = context.WithValue(ctx, models.PlayerContextKey, player)
			c.SetRequest(req.WithContext(ctx))

			log.Debug("Player authorized",
				zap.Stringer("playerID", player.ID), zap.String("subject", claims.Subject))
			return next(c)
		}
	}
}
