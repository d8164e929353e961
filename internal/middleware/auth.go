// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gmatrix/gmatrix-backend/internal/services"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

// AdminSession is the explicit admin state threaded through request context.
// IsRealAdmin never changes during view-as; only the effective user does.
type AdminSession struct {
	IsRealAdmin     bool
	ViewingAsUserID *uuid.UUID
}

const adminSessionKey = "admin_session"

// AuthRequired rejects requests without a valid bearer token. Guests pass;
// their claims carry the guest user type.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c)
		if !ok {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches identity when a valid token is present and lets the
// request through either way. Read-only routes use this.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearer(c); ok {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// AdminRequired checks the roles_admin table on every request. Role rows,
// not token claims, are the only admin signal, so a revoked admin loses
// access without reissuing tokens. A real admin may set X-View-As-User to
// act as another user; the session keeps both identities visible.
func AdminRequired(adminService *services.AdminService, notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		isAdmin, err := adminService.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			utils.InternalErrorResponse(c, "")
			c.Abort()
			return
		}
		if !isAdmin {
			notifications.NotifyPermissionDenied(&userID, "admin_access", c.Request.URL.Path)
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}

		session := AdminSession{IsRealAdmin: true}
		if viewAs := c.GetHeader("X-View-As-User"); viewAs != "" {
			if viewID, err := uuid.Parse(viewAs); err == nil {
				session.ViewingAsUserID = &viewID
			}
		}

		c.Set(adminSessionKey, session)
		c.Next()
	}
}

// GetAdminSession returns the session attached by AdminRequired.
func GetAdminSession(c *gin.Context) (AdminSession, bool) {
	if v, exists := c.Get(adminSessionKey); exists {
		if session, ok := v.(AdminSession); ok {
			return session, true
		}
	}
	return AdminSession{}, false
}

// EffectiveUserID resolves the user an operation acts for. During view-as
// that is the viewed user, never the admin.
func EffectiveUserID(c *gin.Context) (uuid.UUID, bool) {
	if session, ok := GetAdminSession(c); ok && session.ViewingAsUserID != nil {
		return *session.ViewingAsUserID, true
	}
	return utils.GetUserIDFromContext(c)
}

func parseBearer(c *gin.Context) (*utils.JWTClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}

	claims, err := utils.ValidateJWT(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setIdentity(c *gin.Context, claims *utils.JWTClaims) {
	if id, err := uuid.Parse(claims.UserID); err == nil {
		c.Set("user_id", id)
	}
	c.Set("username", claims.Username)
	c.Set("user_type", claims.UserType)
}
