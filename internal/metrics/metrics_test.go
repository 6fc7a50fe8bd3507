package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.ObserveAdmission("admitted", 5*time.Millisecond)
	r.ObserveAdmission("conflict", time.Millisecond)
	r.ObserveAdmission("conflict", time.Millisecond)
	r.ObserveLockWait(time.Millisecond)
	r.IncTransition("Cancelled")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.admissions.WithLabelValues("admitted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.admissions.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("Cancelled")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.lockWait))
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveAdmission("busy", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `booking_admissions_total{outcome="busy"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
