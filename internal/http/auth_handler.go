package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/facility-booking/internal/application"
)

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	Invalidate(ctx context.Context, token string) error
	Register(ctx context.Context, input application.RegisterInput) (application.UserProfile, error)
	Me(ctx context.Context, principal application.Principal) (application.UserProfile, error)
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	service   authService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(c *gin.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(c, h.logger, "AuthHandler", operation, attrs...)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	result, err := h.service.Authenticate(c.Request.Context(), application.AuthenticateParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	h.log(c, "Login", "user_id", result.User.ID).InfoContext(c.Request.Context(), "session issued")
	h.responder.writeJSON(c, http.StatusOK, loginResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt,
		User:      toUserProfile(result.User),
	})
}

// Logout revokes the bearer token if there is one. It always succeeds for
// unusable tokens.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := bearerToken(c.Request); token != "" {
		if err := h.service.Invalidate(c.Request.Context(), token); err != nil {
			h.responder.handleServiceError(c, err)
			return
		}
	}
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	profile, err := h.service.Register(c.Request.Context(), application.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     application.Role(req.Role),
		Department: application.Department{
			Code:  req.Department.Code,
			Name:  req.Department.Name,
			Batch: req.Department.Batch,
		},
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, toUserProfile(profile))
}

func (h *AuthHandler) Me(c *gin.Context) {
	profile, err := h.service.Me(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toUserProfile(profile))
}
