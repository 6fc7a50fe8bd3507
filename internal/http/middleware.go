package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/facility-booking/internal/application"
)

// SessionValidator turns a bearer token into a principal.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

// RequireSession rejects requests without a valid bearer token and stores
// the principal in the request context.
func RequireSession(validator SessionValidator, logger *slog.Logger) gin.HandlerFunc {
	responder := newResponder(logger)

	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			responder.writeError(c, http.StatusUnauthorized, "session_invalid", errMissingSessionToken)
			return
		}

		principal, err := validator.ValidateSession(c.Request.Context(), token)
		if err != nil {
			responder.handleServiceError(c, err)
			return
		}

		ctx := ContextWithPrincipal(c.Request.Context(), principal)
		if logger := LoggerFromContext(ctx); logger != nil {
			ctx = ContextWithLogger(ctx, logger.With("principal_id", principal.UserID))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger injects a request scoped logger and logs each request's outcome.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(c *gin.Context) {
		id := counter.Add(1)
		logger := base.With(
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		ctx := ContextWithLogger(c.Request.Context(), logger)
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "request completed",
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Recovery turns panics into 500 responses with the standard error body.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	responder := newResponder(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		responder.loggerFor(c.Request.Context()).ErrorContext(c.Request.Context(), "panic recovered", "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			ErrorCode: "internal_error",
			Message:   "internal server error",
		})
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func principalFrom(c *gin.Context) application.Principal {
	principal, _ := PrincipalFromContext(c.Request.Context())
	return principal
}
