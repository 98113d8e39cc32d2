package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/aeroreserva/flighthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// SessionCookie is where the browser flow carries the token; API clients may
// send a Bearer header instead. The cookie wins when both are present.
const SessionCookie = "access_token"

// Keep these interfaces small so tests can fake them easily.

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserLookup
}

func NewAuthMiddleware(jwt TokenVerifier, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

func (m *AuthMiddleware) tokenFrom(c *gin.Context) string {
	if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
		return raw
	}

	authHeader := c.GetHeader("Authorization")

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	}

	return ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

// RequireAuth rejects requests without a verifiable session token and
// stashes the authenticated user id on the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := m.tokenFrom(c)

		if raw == "" {
			abortUnauthorized(c, "Missing session token")
			return
		}

		userID, err := m.jwt.Verify(raw)

		if err != nil {
			abortUnauthorized(c, "Invalid or expired session token")
			return
		}

		c.Set(ctxUserIDKey, userID)
		c.Next()
	}
}

// RequireAdmin loads the authenticated user and rejects non-admins. Must run
// after RequireAuth. The admin flag lives in the database, not the token, so
// a demoted admin loses access without waiting out the token expiry.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := UserIDFromContext(c)

		if !ok {
			abortUnauthorized(c, "Missing session token")
			return
		}

		u, err := m.users.GetByID(c.Request.Context(), id)

		if err != nil {
			abortUnauthorized(c, "Invalid session")
			return
		}

		if !u.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Administrator access required",
				},
			})
			return
		}

		c.Set(ctxIsAdminKey, true)
		c.Next()
	}
}

// ResolveAdmin sets the admin flag for an already-authenticated user without
// rejecting anyone. For routes that behave differently for admins but stay
// open to regular users.
func (m *AuthMiddleware) ResolveAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := UserIDFromContext(c); ok {
			if u, err := m.users.GetByID(c.Request.Context(), id); err == nil && u.IsAdmin {
				c.Set(ctxIsAdminKey, true)
			}
		}

		c.Next()
	}
}

// OptionalAuth sets the user id when a valid token is present but never
// rejects. Used on routes whose response shape differs for signed-in users.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := m.tokenFrom(c)

		if raw != "" {
			if userID, err := m.jwt.Verify(raw); err == nil {
				c.Set(ctxUserIDKey, userID)
			}
		}

		c.Next()
	}
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func IsAdminFromContext(c *gin.Context) bool {
	v, ok := c.Get(ctxIsAdminKey)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
