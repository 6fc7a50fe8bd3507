package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/facility-booking/internal/application"
)

type resourceService interface {
	CreateResource(ctx context.Context, principal application.Principal, input application.ResourceInput) (application.Resource, error)
	UpdateResource(ctx context.Context, principal application.Principal, resourceID string, input application.ResourceInput) (application.Resource, error)
	SetStatus(ctx context.Context, principal application.Principal, resourceID string, status application.ResourceStatus) (application.Resource, error)
	DeleteResource(ctx context.Context, principal application.Principal, resourceID string) error
	GetResource(ctx context.Context, principal application.Principal, resourceID string) (application.Resource, error)
	ListResources(ctx context.Context, principal application.Principal) ([]application.Resource, error)
}

// ResourceHandler serves the /resources endpoints.
type ResourceHandler struct {
	service   resourceService
	responder responder
	logger    *slog.Logger
}

func NewResourceHandler(service resourceService, logger *slog.Logger) *ResourceHandler {
	base := defaultLogger(logger)
	return &ResourceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ResourceHandler) List(c *gin.Context) {
	resources, err := h.service.ListResources(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	out := make([]resourceDTO, 0, len(resources))
	for _, r := range resources {
		out = append(out, toResourceDTO(r))
	}
	h.responder.writeJSON(c, http.StatusOK, out)
}

func (h *ResourceHandler) Get(c *gin.Context) {
	resource, err := h.service.GetResource(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toResourceDTO(resource))
}

func (h *ResourceHandler) Create(c *gin.Context) {
	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}
	resource, err := h.service.CreateResource(c.Request.Context(), principalFrom(c), req.toInput())
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	c.Header("Location", "/resources/"+resource.ID)
	h.responder.writeJSON(c, http.StatusCreated, toResourceDTO(resource))
}

func (h *ResourceHandler) Update(c *gin.Context) {
	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}
	resource, err := h.service.UpdateResource(c.Request.Context(), principalFrom(c), c.Param("id"), req.toInput())
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toResourceDTO(resource))
}

func (h *ResourceHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}
	resource, err := h.service.SetStatus(c.Request.Context(), principalFrom(c), c.Param("id"), application.ResourceStatus(req.Status))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toResourceDTO(resource))
}

func (h *ResourceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeleteResource(c.Request.Context(), principalFrom(c), id); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	handlerLogger(c, h.logger, "ResourceHandler", "Delete", "resource_id", id).InfoContext(c.Request.Context(), "resource deleted")
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}
