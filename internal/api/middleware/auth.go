package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/pkg/jwt"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// Context keys set by JWTAuth.
const (
	PrincipalKey = "principal"
	TokenIDKey   = "token_id"
	TokenExpKey  = "token_expires_at"
)

// Blacklist reports revoked access tokens.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWTAuth validates the Bearer access token and injects the principal.
// With a nil blacklist revoked tokens stay valid until they expire.
func JWTAuth(jwtMgr *jwt.Manager, blacklist Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, 10002, "missing or malformed Authorization header")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, 10002, "token is invalid or expired")
			c.Abort()
			return
		}
		if claims.TokenType != jwt.TypeAccess {
			response.Unauthorized(c, 10002, "access token required")
			c.Abort()
			return
		}

		if blacklist != nil && claims.ID != "" {
			revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err == nil && revoked {
				response.Unauthorized(c, 10002, "token has been revoked")
				c.Abort()
				return
			}
		}

		p := authz.Principal{UserID: claims.UserID, Role: authz.Role(claims.Role)}
		c.Set(PrincipalKey, p)
		c.Set(TokenIDKey, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(TokenExpKey, claims.ExpiresAt.Time)
		} else {
			c.Set(TokenExpKey, time.Time{})
		}
		c.Request = c.Request.WithContext(authz.WithPrincipal(c.Request.Context(), p))

		c.Next()
	}
}

// bearerToken reads the Authorization header. EventSource clients cannot set
// headers, so the SSE route also accepts an access_token query parameter.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("access_token"); q != "" && strings.HasSuffix(c.FullPath(), "/stream/") {
			return q, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Require rejects callers whose role lacks capability.
func Require(capability authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(PrincipalKey)
		p, ok := v.(authz.Principal)
		if !exists || !ok {
			response.Unauthorized(c, 10002, "not authenticated")
			c.Abort()
			return
		}
		if err := authz.Require(p, capability); err != nil {
			response.Forbidden(c, 10003, "you are not allowed to perform this operation")
			c.Abort()
			return
		}
		c.Next()
	}
}
