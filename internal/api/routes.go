package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/internal/auth"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "jason-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Kiosk session bootstrap
	v1.POST("/session", func(c echo.Context) error {
		return createSession(c, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// createSession issues a session token for a kiosk that just loaded
func createSession(c echo.Context, logger *zap.Logger) error {
	sessionID := uuid.New().String()

	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		logger.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	logger.Info("Kiosk session created", zap.String("session_id", sessionID))

	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: time.Now().Add(auth.SessionTokenTTL),
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	// Browsers cannot set headers on websocket upgrades, so the token also
	// rides in a query parameter.
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Session token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired session token",
		})
	}

	if claims.Role != "kiosk" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only kiosk tokens are allowed for WebSocket connections",
		})
	}

	if claims.SessionID == "" {
		logger.Error("WebSocket connection rejected: missing session ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Session ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("session_id", claims.SessionID))

	return websocket.HandleWebSocketWithAuth(hub, c, claims.SessionID, logger)
}
