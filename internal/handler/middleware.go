package handler

import (
	"strings"
	"time"

	"gomonate/internal/logging"
	"gomonate/internal/service"
	"gomonate/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxRequestID = "requestID"
	ctxUserID    = "userID"
	ctxRole      = "role"

	headerRequestID = "X-Request-ID"
)

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// LoggerMiddleware writes one access log line per request.
func LoggerMiddleware(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		args := []any{
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"request_id", c.GetString(ctxRequestID),
		}
		if uid := c.GetString(ctxUserID); uid != "" {
			args = append(args, "user_id", uid)
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error(c.Request.Context(), "http request", args...)
		case status >= 400:
			log.Warn(c.Request.Context(), "http request", args...)
		default:
			log.Info(c.Request.Context(), "http request", args...)
		}
	}
}

// RecoveryMiddleware turns a panic into a 500 envelope.
func RecoveryMiddleware(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error(c.Request.Context(), "panic recovered",
					"panic", err,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(ctxRequestID),
				)
				response.ServerError(c, "internal error")
			}
		}()
		c.Next()
	}
}

func CORSMiddleware(allowOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(allowOrigins) == 0 || (len(allowOrigins) == 1 && allowOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowOrigins
	}
	return cors.New(cfg)
}

// AuthMiddleware requires a valid bearer token from an active user holding
// one of roles. With no roles any authenticated user passes.
func AuthMiddleware(users *service.UserService, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		user, err := users.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		if len(roles) > 0 && !hasRole(user.Role, roles) {
			response.Forbidden(c, "insufficient role")
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxRole, user.Role)
		c.Next()
	}
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
