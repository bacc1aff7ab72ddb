package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/roomgate/internal/services"
	"github.com/thereayou/roomgate/pkg/auth"
)

const (
	UserIDKey   = "userID"
	UserNameKey = "userName"
	GuestKey    = "guest"
	TokenKey    = "token"
)

// TokenValidator проверяет токен и черный список.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*services.Identity, error)
}

// AuthMiddleware проверяет JWT токен
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		authenticate(c, validator, token)
	}
}

// WSAuthMiddleware специальный middleware для WebSocket: браузер не может
// выставить заголовок, поэтому токен принимается и из query.
func WSAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
					token = parts[1]
				}
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		authenticate(c, validator, token)
	}
}

func authenticate(c *gin.Context, validator TokenValidator, token string) {
	id, err := validator.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Set(UserIDKey, id.UserID)
	c.Set(UserNameKey, id.Name)
	c.Set(GuestKey, id.Guest)
	c.Set(TokenKey, token)
	c.Next()
}

// CurrentUser достаёт личность, положенную AuthMiddleware.
func CurrentUser(c *gin.Context) services.Identity {
	return services.Identity{
		UserID: c.GetString(UserIDKey),
		Name:   c.GetString(UserNameKey),
		Guest:  c.GetBool(GuestKey),
	}
}
