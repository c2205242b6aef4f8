// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated actor's identity.
// It lets handlers read who is calling without depending on JWT details.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// TeamID returns the tenant the user belongs to.
	TeamID() uuid.UUID
	// Role returns the user's role (AGENT or TEAM_LEAD).
	Role() string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	teamID        uuid.UUID
	role          string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID        { return i.userID }
func (i *identity) TeamID() uuid.UUID        { return i.teamID }
func (i *identity) Role() string             { return i.role }
func (i *identity) HasRole(role string) bool { return i.role == role }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user or team is missing.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	teamID, teamOK := c.Get(ContextTeamIDKey)
	if !userOK || !teamOK {
		return &identity{}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{}
	}
	tid, ok := teamID.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	role, _ := c.Get(ContextRoleKey)
	roleStr, _ := role.(string)

	return &identity{
		userID:        uid,
		teamID:        tid,
		role:          roleStr,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
