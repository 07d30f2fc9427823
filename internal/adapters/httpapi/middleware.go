package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvetinski/bank/internal/auth"
	"github.com/kvetinski/bank/internal/telemetry"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
	usernameKey     = "username"
	authRealm       = `Basic realm="bank"`
)

// RequestID propagates the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Observe records request metrics and writes one access log line per request.
func Observe(metrics *telemetry.Metrics, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		metrics.IncHTTPInFlight()
		defer metrics.DecHTTPInFlight()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveHTTP(c.Request.Method, route, status, time.Since(start))

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("user", c.GetString(usernameKey)),
		)
	}
}

// BasicAuth rejects requests whose Basic credentials the verifier does not accept.
func BasicAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || !verifier.Verify(username, password) {
			c.Header("WWW-Authenticate", authRealm)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				StatusCode: http.StatusUnauthorized,
				Message:    "unauthorized",
			})
			return
		}

		c.Set(usernameKey, username)
		c.Next()
	}
}

// Recovery turns a panic into a 500 with the standard error body.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			StatusCode: http.StatusInternalServerError,
			Message:    "internal server error",
		})
	})
}
