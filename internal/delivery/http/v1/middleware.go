package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDCtxKey   = "user_id"
	usernameCtxKey = "username"
)

func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	const authHeader = "Authorization"
	header := c.GetHeader(authHeader)
	if header == "" {
		h.logger.Error().Msg("authorization header required")
		abortWithMessage(c, http.StatusUnauthorized, "No token provided")
		return
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix {
		h.logger.Error().Msg("invalid authorization header")
		abortWithMessage(c, http.StatusUnauthorized, "No token provided")
		return
	}

	identity, err := h.verifier.Verify(c, parts[1])
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to verify token")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	c.Set(userIDCtxKey, identity.UserID)
	c.Set(usernameCtxKey, identity.Username)
	c.Next()
}

func callerIdentity(c *gin.Context) (userID, username string, ok bool) {
	userIDValue, exists := c.Get(userIDCtxKey)
	if !exists {
		return "", "", false
	}
	userID, _ = userIDValue.(string)

	usernameValue, _ := c.Get(usernameCtxKey)
	username, _ = usernameValue.(string)
	return userID, username, userID != ""
}
