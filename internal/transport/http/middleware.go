package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/auth"
)

// ContextKeyUserID is the gin context key for the authenticated user id.
const ContextKeyUserID = "user_id"

// AuthMiddleware creates a middleware that validates bearer tokens.
func AuthMiddleware(gate *auth.Gate, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := gate.Verify(bearerToken(c.Request.Header.Get("Authorization")))
		if err != nil {
			logger.Debug().Err(err).Msg("rejected api request")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: auth.Reason(err)})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// userID reads the authenticated user id set by AuthMiddleware.
func userID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
