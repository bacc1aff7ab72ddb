package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/pkg/ratelimit"
)

// JoinRateLimit ограничивает попытки входа одного пользователя в одну комнату.
// Должен стоять после AuthMiddleware.
func JoinRateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(UserIDKey) + "|" + admission.NormalizeRoomID(c.Param("code"))
		if limiter.Allow(key) {
			c.Next()
			return
		}

		retry := limiter.RetryAfter(key)
		log.Warn().Str("module", "middleware").Str("key", key).Dur("retry_after", retry).Msg("join rate limit exceeded")
		c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many join attempts, try again later"})
	}
}
