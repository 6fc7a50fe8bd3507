package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/metrics"
	"github.com/example/facility-booking/internal/persistence/memory"
	"github.com/example/facility-booking/internal/testfixtures"
)

type testServer struct {
	t        *testing.T
	engine   *gin.Engine
	services *testfixtures.Services
	clock    *testfixtures.Clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	testfixtures.Seed(t, store, testfixtures.Campus())
	recorder := metrics.New()
	factory := testfixtures.NewServiceFactory()
	svc := factory.Build(t, testfixtures.ServiceDeps{
		Store:   store,
		Booking: application.BookingOptions{Metrics: recorder},
	})

	engine := NewRouter(RouterConfig{
		Auth:      NewAuthHandler(svc.Auth, nil),
		Bookings:  NewBookingHandler(svc.Bookings, time.UTC, nil),
		Resources: NewResourceHandler(svc.Resources, nil),
		Users:     NewUserHandler(svc.Users, nil),
		Sessions:  svc.Auth,
		Metrics:   recorder.Handler(),
	})
	return &testServer{t: t, engine: engine, services: svc, clock: factory.Clock}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp loginResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(s.t, resp.Token)
	return resp.Token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.ErrorCode
}

func TestRouterBookingFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(http.MethodPost, "/auth/register", "", registerRequest{
		Email: "asha@campus.edu", Password: "secret1", FullName: "Asha", Role: "Student",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	adminToken := srv.login("admin@campus.edu", testfixtures.DefaultPassword)
	studentToken := srv.login("asha@campus.edu", "secret1")

	w = srv.do(http.MethodPost, "/resources", adminToken, resourceRequest{
		ID: "lab-9", Name: "Lab-9", Category: "Lab", Capacity: 30,
		Location: locationDTO{Building: "Main"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = srv.do(http.MethodPost, "/resources", studentToken, resourceRequest{
		ID: "lab-2", Name: "Lab-2", Category: "Lab", Capacity: 30,
		Location: locationDTO{Building: "Main"},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	date := testfixtures.FutureDate(7)
	w = srv.do(http.MethodPost, "/bookings", studentToken, bookingRequest{
		ResourceID: "lab-9", Date: date, StartTime: "09:00", EndTime: "11:00", Purpose: "lab session",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first bookingDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "Confirmed", first.Status)

	w = srv.do(http.MethodPost, "/bookings", adminToken, bookingRequest{
		ResourceID: "lab-9", Date: date, StartTime: "10:00", EndTime: "12:00", Purpose: "overlap",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorCode(t, w))

	w = srv.do(http.MethodPost, "/bookings", adminToken, bookingRequest{
		ResourceID: "lab-9", Date: date, StartTime: "11:00", EndTime: "12:00", Purpose: "touching",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = srv.do(http.MethodGet, "/bookings/availability?resourceId=lab-9&date="+date, studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail availabilityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.Len(t, avail.Busy, 2)

	w = srv.do(http.MethodPut, "/bookings/"+first.ID+"/cancel", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = srv.do(http.MethodGet, "/bookings/user/"+first.UserID, studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []bookingDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Cancelled", mine[0].Status)

	w = srv.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "booking_admissions_total"))
}

func TestRouterSessionHandling(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "session_invalid", errorCode(t, w))

	w = srv.do(http.MethodGet, "/resources", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(http.MethodPost, "/auth/login", "", loginRequest{Email: "nobody@campus.edu", Password: "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, w))

	w = srv.do(http.MethodPost, "/auth/register", "", registerRequest{
		Email: "ravi@campus.edu", Password: "secret1", FullName: "Ravi", Role: "Faculty",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	token := srv.login("ravi@campus.edu", "secret1")

	w = srv.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me userProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "Faculty", me.Role)

	w = srv.do(http.MethodGet, "/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = srv.do(http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(http.MethodPost, "/auth/register", "", registerRequest{Email: "bad", Password: "x", Role: "Admin"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.ErrorCode)
	assert.Contains(t, body.Errors, "email")
	assert.Contains(t, body.Errors, "password")
	assert.Contains(t, body.Errors, "role")
}

func TestRouterDerivedStatusAfterWindowEnds(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("faculty@campus.edu", testfixtures.DefaultPassword)

	w := srv.do(http.MethodPost, "/bookings", token, bookingRequest{
		ResourceID: "lab-1", Date: testfixtures.FutureDate(1), StartTime: "22:00", EndTime: "24:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var booking bookingDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &booking))
	assert.Equal(t, "24:00", booking.EndTime)

	srv.clock.Advance(72 * time.Hour)
	w = srv.do(http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, "session_expired", errorCode(t, w))
	token = srv.login("faculty@campus.edu", testfixtures.DefaultPassword)

	w = srv.do(http.MethodGet, "/bookings/"+booking.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got bookingDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Completed", got.Status)

	w = srv.do(http.MethodPut, "/bookings/"+booking.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, w))

	result, err := srv.services.Bookings.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
}
