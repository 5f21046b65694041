package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeTelemetry struct {
	events  []string
	traces  []string
	metrics map[string]float64
}

func (f *fakeTelemetry) Enabled() bool { return true }

func (f *fakeTelemetry) TrackEvent(name string, properties map[string]string) {
	f.events = append(f.events, name)
}

func (f *fakeTelemetry) TrackTrace(message, severity string) {
	f.traces = append(f.traces, severity+": "+message)
}

func (f *fakeTelemetry) TrackMetric(name string, value float64) {
	if f.metrics == nil {
		f.metrics = make(map[string]float64)
	}
	f.metrics[name] = value
}

func (f *fakeTelemetry) TrackRequest(method, path string, statusCode int, duration time.Duration) {}

func TestHandleTrackEvent(t *testing.T) {
	svc := &fakeTelemetry{}
	h := NewTelemetryHandler(svc, zap.NewNop())

	body := `{"name":"doc.ingested","properties":{"source":"upload"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/Telemetry/event", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleTrackEvent(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"doc.ingested"}, svc.events)
}

func TestHandleTrackEventRequiresName(t *testing.T) {
	h := NewTelemetryHandler(&fakeTelemetry{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/Telemetry/event", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.HandleTrackEvent(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrackTrace(t *testing.T) {
	svc := &fakeTelemetry{}
	h := NewTelemetryHandler(svc, zap.NewNop())

	body := `{"message":"index rebuilt","severity":"warning"}`
	req := httptest.NewRequest(http.MethodPost, "/api/Telemetry/trace", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleTrackTrace(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"warning: index rebuilt"}, svc.traces)
}

func TestHandleTrackTraceRejectsUnknownSeverity(t *testing.T) {
	h := NewTelemetryHandler(&fakeTelemetry{}, zap.NewNop())

	body := `{"message":"x","severity":"loud"}`
	req := httptest.NewRequest(http.MethodPost, "/api/Telemetry/trace", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleTrackTrace(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrackMetric(t *testing.T) {
	svc := &fakeTelemetry{}
	h := NewTelemetryHandler(svc, zap.NewNop())

	body := `{"name":"chunks.indexed","value":42}`
	req := httptest.NewRequest(http.MethodPost, "/api/Telemetry/metric", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleTrackMetric(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 42.0, svc.metrics["chunks.indexed"])
}
