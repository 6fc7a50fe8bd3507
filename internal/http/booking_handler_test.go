package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/lifecycle"
)

type mockBookingService struct {
	mock.Mock
}

func (m *mockBookingService) GetAvailability(ctx context.Context, principal application.Principal, resourceID, date string) (application.Availability, error) {
	args := m.Called(ctx, principal, resourceID, date)
	return args.Get(0).(application.Availability), args.Error(1)
}

func (m *mockBookingService) CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(application.Booking), args.Error(1)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error) {
	args := m.Called(ctx, principal, bookingID)
	return args.Get(0).(application.Booking), args.Error(1)
}

func (m *mockBookingService) ApproveBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error) {
	args := m.Called(ctx, principal, bookingID)
	return args.Get(0).(application.Booking), args.Error(1)
}

func (m *mockBookingService) GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error) {
	args := m.Called(ctx, principal, bookingID)
	return args.Get(0).(application.Booking), args.Error(1)
}

func (m *mockBookingService) ListUserBookings(ctx context.Context, principal application.Principal, userID string) ([]application.Booking, error) {
	args := m.Called(ctx, principal, userID)
	return args.Get(0).([]application.Booking), args.Error(1)
}

func (m *mockBookingService) ListAllBookings(ctx context.Context, principal application.Principal, query application.BookingQuery) ([]application.Booking, error) {
	args := m.Called(ctx, principal, query)
	return args.Get(0).([]application.Booking), args.Error(1)
}

var studentPrincipal = application.Principal{UserID: "u-1", Role: application.RoleStudent}

func newBookingContext(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req.WithContext(ContextWithPrincipal(req.Context(), studentPrincipal))
	return c, w
}

func sampleBooking() application.Booking {
	return application.Booking{
		ID:         "b-1",
		ResourceID: "lab-1",
		UserID:     "u-1",
		Date:       "2030-03-14",
		Start:      time.Date(2030, 3, 14, 9, 0, 0, 0, time.UTC),
		End:        time.Date(2030, 3, 14, 10, 0, 0, 0, time.UTC),
		Status:     lifecycle.StatusConfirmed,
		Resource:   application.ResourceSnapshot{Name: "Lab-1", Building: "Main", Category: "Lab"},
		User:       application.UserSnapshot{Name: "Student One", Role: application.RoleStudent},
	}
}

func TestBookingHandler_Create(t *testing.T) {
	service := &mockBookingService{}
	handler := NewBookingHandler(service, time.UTC, nil)

	req := bookingRequest{ResourceID: "lab-1", Date: "2030-03-14", StartTime: "09:00", EndTime: "10:00", Purpose: "class"}
	c, w := newBookingContext(t, http.MethodPost, "/bookings", req)

	service.On("CreateBooking", mock.Anything, application.CreateBookingParams{
		Principal: studentPrincipal,
		Input: application.BookingInput{
			ResourceID: "lab-1", Date: "2030-03-14", StartTime: "09:00", EndTime: "10:00", Purpose: "class",
		},
	}).Return(sampleBooking(), nil)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/bookings/b-1", w.Header().Get("Location"))

	var got bookingDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "09:00", got.StartTime)
	assert.Equal(t, "10:00", got.EndTime)
	assert.Equal(t, "Confirmed", got.Status)
	assert.Equal(t, "Lab-1", got.Resource.Name)
	service.AssertExpectations(t)
}

func TestBookingHandler_CreateConflict(t *testing.T) {
	service := &mockBookingService{}
	handler := NewBookingHandler(service, time.UTC, nil)
	c, w := newBookingContext(t, http.MethodPost, "/bookings", bookingRequest{ResourceID: "lab-1"})

	busy := availability.Busy{
		BookingID: "b-0",
		Interval: availability.Interval{
			Start: time.Date(2030, 3, 14, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2030, 3, 14, 11, 0, 0, 0, time.UTC),
		},
	}
	service.On("CreateBooking", mock.Anything, mock.Anything).
		Return(application.Booking{}, &application.ConflictError{ResourceID: "lab-1", Busy: []availability.Busy{busy}})

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body.ErrorCode)
	require.Len(t, body.BusyIntervals, 1)
	assert.Equal(t, "b-0", body.BusyIntervals[0].BookingID)
}

func TestBookingHandler_CreateBusySetsRetryAfter(t *testing.T) {
	service := &mockBookingService{}
	handler := NewBookingHandler(service, time.UTC, nil)
	c, w := newBookingContext(t, http.MethodPost, "/bookings", bookingRequest{ResourceID: "lab-1"})

	service.On("CreateBooking", mock.Anything, mock.Anything).Return(application.Booking{}, application.ErrBusy)

	handler.Create(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestBookingHandler_CreateRejectsMalformedBody(t *testing.T) {
	service := &mockBookingService{}
	handler := NewBookingHandler(service, time.UTC, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingHandler_Cancel(t *testing.T) {
	service := &mockBookingService{}
	handler := NewBookingHandler(service, time.UTC, nil)
	c, w := newBookingContext(t, http.MethodPut, "/bookings/b-1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "b-1"}}

	cancelled := sampleBooking()
	cancelled.Status = lifecycle.StatusCancelled
	cancelled.CancelledBy = "u-1"
	service.On("CancelBooking", mock.Anything, studentPrincipal, "b-1").Return(cancelled, nil)

	handler.Cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var got bookingDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Cancelled", got.Status)
	assert.Equal(t, "u-1", got.CancelledBy)
	service.AssertExpectations(t)
}

func TestBookingHandler_ApproveErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{name: "not found", err: application.ErrNotFound, status: http.StatusNotFound, code: "not_found", message: "not found"},
		{name: "denied", err: &application.DeniedError{Code: "not_admin", Reason: "administrators only"}, status: http.StatusForbidden, code: "authorization_error", message: "administrators only"},
		{name: "wrong state", err: application.ErrInvalidTransition, status: http.StatusConflict, code: "invalid_transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockBookingService{}
			handler := NewBookingHandler(service, time.UTC, nil)
			c, w := newBookingContext(t, http.MethodPut, "/bookings/b-1/approve", nil)
			c.Params = gin.Params{{Key: "id", Value: "b-1"}}
			service.On("ApproveBooking", mock.Anything, studentPrincipal, "b-1").Return(application.Booking{}, tt.err)

			handler.Approve(c)

			assert.Equal(t, tt.status, w.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.ErrorCode)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestBookingHandler_Availability(t *testing.T) {
	service := &mockBookingService{}
	handler := NewBookingHandler(service, time.UTC, nil)
	c, w := newBookingContext(t, http.MethodGet, "/bookings/availability?resourceId=lab-1&date=2030-03-14", nil)

	service.On("GetAvailability", mock.Anything, studentPrincipal, "lab-1", "2030-03-14").Return(application.Availability{
		ResourceID: "lab-1",
		Date:       "2030-03-14",
		Busy:       []availability.Busy{},
	}, nil)

	handler.Availability(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resourceId":"lab-1","date":"2030-03-14","busy":[]}`, w.Body.String())
}

func TestBookingHandler_ListPassesQuery(t *testing.T) {
	service := &mockBookingService{}
	handler := NewBookingHandler(service, time.UTC, nil)
	c, w := newBookingContext(t, http.MethodGet, "/bookings?resourceId=lab-1&status=Pending&date=2030-03-14", nil)

	service.On("ListAllBookings", mock.Anything, studentPrincipal, application.BookingQuery{
		ResourceID: "lab-1",
		Status:     lifecycle.StatusPending,
		Date:       "2030-03-14",
	}).Return([]application.Booking{}, nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	service.AssertExpectations(t)
}

func TestClockOfEndOfDay(t *testing.T) {
	end := time.Date(2030, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "24:00", clockOf(end, "2030-03-14", time.UTC))
	assert.Equal(t, "00:00", clockOf(end, "2030-03-15", time.UTC))
}
