package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classmeet/backend/internal/models"
)

// Keys under which the JWT middleware stores the caller's claims.
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextUserEmail = "user_email"
)

// SetActor stores validated claims on the request context.
func SetActor(c *gin.Context, claims *Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextUserEmail, claims.Email)
}

// ActorRole returns the authenticated user's role, or "" when absent or unknown.
func ActorRole(c *gin.Context) models.Role {
	role, ok := models.ParseRole(c.GetString(ContextUserRole))
	if !ok {
		return ""
	}
	return role
}

// ActorID returns the authenticated user's id, or uuid.Nil.
func ActorID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ContextUserID)
	id, _ := v.(uuid.UUID)
	return id
}
