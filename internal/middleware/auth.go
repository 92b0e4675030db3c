package middleware

import (
	"net/http"
	"strings"

	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key the verified identity is stashed
// under by RequireAuth, for handlers to retrieve via Identity(c).
const IdentityKey = "identity"

// RequireAuth verifies the Bearer token on every control-plane request
// (spec §6: "Authorization header: Bearer <token> on all non-health
// endpoints") and aborts with 401 on failure, never revealing why.
func RequireAuth(validator types.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" || tokenString == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		identity, err := validator.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// Identity retrieves the identity RequireAuth verified for this request.
func Identity(c *gin.Context) *types.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*types.Identity)
	return id
}
