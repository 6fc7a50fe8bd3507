package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/facility-booking/internal/application"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errMissingSessionToken = errors.New("an Authorization bearer token is required")
)

type responder struct {
	logger     *slog.Logger
	retryAfter time.Duration
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger), retryAfter: time.Second}
}

type errorResponse struct {
	ErrorCode     string            `json:"error_code"`
	Message       string            `json:"message"`
	Errors        map[string]string `json:"errors,omitempty"`
	BusyIntervals []busyDTO         `json:"busy_intervals,omitempty"`
}

func (r responder) writeJSON(c *gin.Context, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

func (r responder) writeError(c *gin.Context, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
		r.loggerFor(c.Request.Context()).WarnContext(c.Request.Context(), "request failed", "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps application errors onto the HTTP error taxonomy.
func (r responder) handleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if err == nil {
		err = errors.New("unknown error")
	}

	kind := application.ErrorKind(err)
	body := errorResponse{ErrorCode: kind, Message: err.Error()}
	status := http.StatusInternalServerError

	switch kind {
	case "validation_error", "invalid_range":
		status = http.StatusUnprocessableEntity
		body.Message = "request validation failed"
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			body.Errors = vErr.FieldErrors
		}
	case "invalid_credentials":
		status = http.StatusUnauthorized
		body.Message = "email or password is incorrect"
	case "session_expired":
		status = http.StatusUnauthorized
		body.Message = "session has expired, please sign in again"
	case "session_invalid":
		status = http.StatusUnauthorized
		body.Message = "session is not valid, please sign in again"
	case "account_disabled":
		status = http.StatusUnauthorized
		body.Message = "account is disabled"
	case "authorization_error":
		status = http.StatusForbidden
		var denied *application.DeniedError
		if errors.As(err, &denied) {
			body.Message = denied.Reason
		}
	case "conflict":
		status = http.StatusConflict
		body.Message = "the requested time overlaps existing bookings"
		var conflict *application.ConflictError
		if errors.As(err, &conflict) {
			body.BusyIntervals = busyDTOs(conflict.Busy)
		}
	case "resource_unavailable", "invalid_transition", "resource_in_use", "already_exists":
		status = http.StatusConflict
	case "busy":
		status = http.StatusServiceUnavailable
		body.Message = "resource is busy, retry shortly"
		c.Header("Retry-After", strconv.Itoa(int(r.retryAfter.Seconds())))
	case "not_found":
		status = http.StatusNotFound
		body.Message = "not found"
	default:
		body.Message = "internal server error"
	}

	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError && kind != "busy" {
		logger.ErrorContext(ctx, "request failed", "status", status, "error", err, "error_kind", kind)
	} else {
		logger.InfoContext(ctx, "request rejected", "status", status, "error_kind", kind)
	}
	c.AbortWithStatusJSON(status, body)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}
