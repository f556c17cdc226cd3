package httpHandler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"relay-server/logs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// APIKeyHeader carries the shared secret.
	APIKeyHeader = "X-API-Key"
	// RequestIDHeader is echoed back on every response.
	RequestIDHeader = "X-Request-ID"
)

// RequireAPIKey rejects requests whose X-API-Key does not match key.
func RequireAPIKey(key string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(key))
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(APIKeyHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - Invalid API Key"})
			return
		}
		c.Next()
	}
}

// RequestID tags the request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one logrus line per request.
func RequestLogger() gin.HandlerFunc {
	log := logs.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString("request_id"),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Debug("request")
		}
	}
}

// Recovery turns panics into a 500 JSON body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logs.Logger.WithField("panic", recovered).Error("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Server error",
			"message": "unexpected failure",
		})
	})
}
