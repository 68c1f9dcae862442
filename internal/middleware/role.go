package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classmeet/backend/internal/auth"
	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/pkg/response"
)

// Require returns a middleware that allows only roles granted the action.
func Require(action models.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserRole); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !ActorRole(c).Can(action) {
			response.Forbidden(c, "not authorized")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorRole returns the authenticated user's role, or "" when absent or unknown.
func ActorRole(c *gin.Context) models.Role { return auth.ActorRole(c) }

// ActorID returns the authenticated user's id, or uuid.Nil.
func ActorID(c *gin.Context) uuid.UUID { return auth.ActorID(c) }
