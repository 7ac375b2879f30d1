package middleware

import (
	"net/http"
	"strings"

	"auctionengine/internal/http/httperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity headers are set by the authenticating gateway in front of the
// service and are trusted as-is.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "admin"
	RoleAgent = "agent"
	RoleUser  = "user"
)

const (
	ctxUserID = "identity.user_id"
	ctxRole   = "identity.role"
)

// Identity reads the caller from the gateway headers. A malformed user id is
// rejected; a missing one leaves the request anonymous.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(HeaderUserID); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httperr.Abort(c, http.StatusUnauthorized, "invalid "+HeaderUserID)
				return
			}
			c.Set(ctxUserID, id)
		}
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
		if role == "" {
			role = RoleUser
		}
		c.Set(ctxRole, role)
		c.Next()
	}
}

func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func Role(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			httperr.Abort(c, http.StatusUnauthorized, "missing "+HeaderUserID)
			return
		}
		c.Next()
	}
}

// RequireRole admits authenticated callers holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			httperr.Abort(c, http.StatusUnauthorized, "missing "+HeaderUserID)
			return
		}
		role := Role(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		httperr.Abort(c, http.StatusForbidden, "role "+role+" may not access this resource")
	}
}
