package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roomchat-service/internal/auth"
	"roomchat-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func identityFromContext(c *gin.Context) (auth.Identity, bool) {
	return middleware.IdentityFromContext(c)
}

func userIDRef(identity auth.Identity) *string {
	if identity.ID == "" {
		return nil
	}
	id := identity.ID
	return &id
}
