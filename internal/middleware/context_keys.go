package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

const (
	principalIDKey    = contextKey("principalID")
	organizationIDKey = contextKey("organizationID")
)

// GetPrincipalIDFromContext retrieves the authenticated caller (a user or a
// calling service) from the request context.
func GetPrincipalIDFromContext(c *gin.Context) (string, bool) {
	id, ok := c.Request.Context().Value(principalIDKey).(string)
	return id, ok && id != ""
}

// GetOrganizationIDFromContext retrieves the tenant the caller's token is scoped to.
func GetOrganizationIDFromContext(c *gin.Context) (string, bool) {
	id, ok := c.Request.Context().Value(organizationIDKey).(string)
	return id, ok && id != ""
}

func withPrincipal(ctx context.Context, principalID, organizationID string) context.Context {
	ctx = context.WithValue(ctx, principalIDKey, principalID)
	return context.WithValue(ctx, organizationIDKey, organizationID)
}
