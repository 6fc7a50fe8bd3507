package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/facility-booking/internal/application"
)

type userService interface {
	ListUsers(ctx context.Context, principal application.Principal) ([]application.UserProfile, error)
	GetUser(ctx context.Context, principal application.Principal, userID string) (application.UserProfile, error)
	SetRole(ctx context.Context, principal application.Principal, userID string, role application.Role) (application.UserProfile, error)
	SetCapabilities(ctx context.Context, principal application.Principal, userID string, capabilities []string) (application.UserProfile, error)
	Deactivate(ctx context.Context, principal application.Principal, userID string) (application.UserProfile, error)
	Reactivate(ctx context.Context, principal application.Principal, userID string) (application.UserProfile, error)
}

// UserHandler serves the /users administration endpoints.
type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	out := make([]userProfile, 0, len(users))
	for _, u := range users {
		out = append(out, toUserProfile(u))
	}
	h.responder.writeJSON(c, http.StatusOK, out)
}

func (h *UserHandler) Get(c *gin.Context) {
	h.respond(c)(h.service.GetUser(c.Request.Context(), principalFrom(c), c.Param("id")))
}

func (h *UserHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}
	handlerLogger(c, h.logger, "UserHandler", "SetRole", "user_id", c.Param("id"), "role", req.Role).
		DebugContext(c.Request.Context(), "role change requested")
	h.respond(c)(h.service.SetRole(c.Request.Context(), principalFrom(c), c.Param("id"), application.Role(req.Role)))
}

func (h *UserHandler) SetCapabilities(c *gin.Context) {
	var req capabilitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}
	h.respond(c)(h.service.SetCapabilities(c.Request.Context(), principalFrom(c), c.Param("id"), req.Capabilities))
}

func (h *UserHandler) Deactivate(c *gin.Context) {
	h.respond(c)(h.service.Deactivate(c.Request.Context(), principalFrom(c), c.Param("id")))
}

func (h *UserHandler) Reactivate(c *gin.Context) {
	h.respond(c)(h.service.Reactivate(c.Request.Context(), principalFrom(c), c.Param("id")))
}

func (h *UserHandler) respond(c *gin.Context) func(application.UserProfile, error) {
	return func(profile application.UserProfile, err error) {
		if err != nil {
			h.responder.handleServiceError(c, err)
			return
		}
		h.responder.writeJSON(c, http.StatusOK, toUserProfile(profile))
	}
}
