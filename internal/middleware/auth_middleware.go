package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID        `json:"user_id"`
	Role   models.ActorRole `json:"role"`
}

// Actor returns the user as the acting party of a booking operation
func (u UserContext) Actor() models.Actor {
	return models.Actor{ID: u.UserID, Role: u.Role}
}

// AuthMiddleware creates a middleware that validates JWT access tokens.
// Only student, owner and admin tokens are accepted; the system role is reserved
// for background jobs.
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logrus.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		})

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Auth failed: missing authorization header")
			abort(c, http.StatusUnauthorized, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			log.Warn("Auth failed: invalid authorization format")
			abort(c, http.StatusUnauthorized, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
			return
		}

		claims, err := jwtService.ValidateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				log.Info("Auth failed: token expired")
				abort(c, http.StatusUnauthorized, "token_expired", "Access token has expired. Please refresh your token.", "TOKEN_EXPIRED")
				return
			}
			log.WithError(err).Warn("Auth failed: invalid token")
			abort(c, http.StatusUnauthorized, "invalid_token", "Invalid access token", "INVALID_TOKEN")
			return
		}

		role := models.ActorRole(claims.Role)
		if !role.IsValid() || role == models.ActorRoleSystem {
			log.WithField("role", claims.Role).Warn("Auth failed: unknown role")
			abort(c, http.StatusForbidden, "forbidden", "Token role is not allowed", "INVALID_ROLE")
			return
		}

		c.Set(UserContextKey, UserContext{UserID: claims.UserID, Role: role})
		c.Set("user_id", claims.UserID.String())
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has one of the roles
func RequireRole(roles ...models.ActorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abort(c, http.StatusUnauthorized, "unauthorized", "User context not found. Auth middleware may not be applied.", "MISSING_USER_CONTEXT")
			return
		}

		for _, role := range roles {
			if userCtx.Role == role {
				c.Next()
				return
			}
		}

		abort(c, http.StatusForbidden, "forbidden", "You don't have permission to access this resource", "INSUFFICIENT_PERMISSIONS")
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	return userCtx, ok
}

func abort(c *gin.Context, status int, errType, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   errType,
		"message": message,
		"code":    code,
	})
}
