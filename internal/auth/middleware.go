package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
)

const (
	claimsKey = "claims"
	scopeKey  = "scope"
)

// OwnerAuth enforces bearer JWT tokens signed with HS256 and derives the
// request scope. ?scope=federated selects the read-only cross-owner view.
// EventSource clients cannot set headers, so ?access_token= is accepted too.
func OwnerAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			tokenStr = c.Query("access_token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		scope := attendance.Scope{OwnerID: claims.Subject}
		if c.Query("scope") == "federated" || claims.Role == RoleViewer {
			scope = attendance.Federated
		}
		c.Set(claimsKey, claims)
		c.Set(scopeKey, scope)
		c.Next()
	}
}

func bearer(authz string) string {
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}

// ClaimsFrom returns the claims set by OwnerAuth.
func ClaimsFrom(c *gin.Context) Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(Claims)
	return claims
}

// ScopeFrom returns the scope set by OwnerAuth, or the federated scope if
// none was set.
func ScopeFrom(c *gin.Context) attendance.Scope {
	v, _ := c.Get(scopeKey)
	scope, _ := v.(attendance.Scope)
	return scope
}
