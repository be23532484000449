package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/levelup-events/backend/internal/auth"
	"github.com/levelup-events/backend/pkg/response"
)

const (
	// ContextPrincipal is the gin context key for the verified principal.
	ContextPrincipal = "principal"
	// AccessTokenCookie is the cookie carrying the IdP access token.
	AccessTokenCookie = "access_token"
)

// Authenticate verifies the access-token cookie and attaches the resulting
// principal to the request context. Requests without a valid token get 401.
// The principal is a per-request value; nothing is shared between requests.
func Authenticate(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(AccessTokenCookie)
		if err != nil || raw == "" {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		p, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

// Principal returns the principal attached by Authenticate, or a fresh
// anonymous principal when none is present.
func Principal(c *gin.Context) auth.Principal {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return auth.Anonymous()
	}
	p, ok := v.(auth.Principal)
	if !ok {
		return auth.Anonymous()
	}
	return p
}

// RequireGroup allows only principals belonging to the named IdP group.
// Must run after Authenticate.
func RequireGroup(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal(c)
		if !p.Authenticated {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		if !p.InGroup(group) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
