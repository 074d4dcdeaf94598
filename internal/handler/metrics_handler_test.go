package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-registration-api/internal/service"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestReady(t *testing.T) {
	c, rec := testContext(http.MethodGet, "/ready", nil, nil)
	NewMetricsHandler(nil, stubPinger{}).Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = testContext(http.MethodGet, "/ready", nil, nil)
	NewMetricsHandler(nil, stubPinger{err: errors.New("connection refused")}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSummaryAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordOutcome("enroll", "enrolled")
	h := NewMetricsHandler(metrics, stubPinger{})

	c, rec := testContext(http.MethodGet, "/metrics/summary", nil, registrar(950))
	h.Summary(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "enroll:enrolled")

	c, rec = testContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registration_outcomes_total")

	c, rec = testContext(http.MethodGet, "/metrics/summary", nil, registrar(950))
	NewMetricsHandler(nil, nil).Summary(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
