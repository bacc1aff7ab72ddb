package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/roomgate/pkg/ratelimit"
)

func TestJoinRateLimit_SharesBucketAcrossCodeSpelling(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/rooms/:code/join",
		func(c *gin.Context) { c.Set(UserIDKey, "U1") },
		JoinRateLimit(ratelimit.New(2, time.Minute)),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	tests := []struct {
		path string
		want int
	}{
		{"/rooms/abc123/join", http.StatusOK},
		{"/rooms/ABC123/join", http.StatusOK},
		{"/rooms/%20Abc123/join", http.StatusTooManyRequests},
		{"/rooms/other/join", http.StatusOK},
	}
	for _, test := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, test.path, nil))
		if w.Code != test.want {
			t.Errorf("POST %s = %d, want %d", test.path, w.Code, test.want)
		}
	}
}
