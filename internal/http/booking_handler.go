package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/facility-booking/internal/application"
)

type bookingService interface {
	GetAvailability(ctx context.Context, principal application.Principal, resourceID, date string) (application.Availability, error)
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	ApproveBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	ListUserBookings(ctx context.Context, principal application.Principal, userID string) ([]application.Booking, error)
	ListAllBookings(ctx context.Context, principal application.Principal, query application.BookingQuery) ([]application.Booking, error)
}

// BookingHandler serves the /bookings endpoints.
type BookingHandler struct {
	service   bookingService
	loc       *time.Location
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler renders times of day in loc, which must match the booking service.
func NewBookingHandler(service bookingService, loc *time.Location, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{service: service, loc: loc, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(c *gin.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(c, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Availability(c *gin.Context) {
	result, err := h.service.GetAvailability(c.Request.Context(), principalFrom(c), c.Query("resourceId"), c.Query("date"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, availabilityResponse{
		ResourceID: result.ResourceID,
		Date:       result.Date,
		Busy:       busyDTOs(result.Busy),
	})
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	booking, err := h.service.CreateBooking(c.Request.Context(), application.CreateBookingParams{
		Principal: principalFrom(c),
		Input: application.BookingInput{
			ResourceID: req.ResourceID,
			Date:       req.Date,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			Purpose:    req.Purpose,
		},
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	h.log(c, "Create", "booking_id", booking.ID).DebugContext(c.Request.Context(), "booking created")
	c.Header("Location", "/bookings/"+booking.ID)
	h.responder.writeJSON(c, http.StatusCreated, toBookingDTO(booking, h.loc))
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	booking, err := h.service.CancelBooking(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTO(booking, h.loc))
}

func (h *BookingHandler) Approve(c *gin.Context) {
	booking, err := h.service.ApproveBooking(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTO(booking, h.loc))
}

func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.GetBooking(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTO(booking, h.loc))
}

func (h *BookingHandler) ListForUser(c *gin.Context) {
	bookings, err := h.service.ListUserBookings(c.Request.Context(), principalFrom(c), c.Param("userId"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTOs(bookings, h.loc))
}

func (h *BookingHandler) List(c *gin.Context) {
	var q bookingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	bookings, err := h.service.ListAllBookings(c.Request.Context(), principalFrom(c), q.toQuery())
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toBookingDTOs(bookings, h.loc))
}
