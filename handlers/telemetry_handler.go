package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// TelemetryService defines the tracking operations the handler needs
type TelemetryService interface {
	Enabled() bool
	TrackEvent(name string, properties map[string]string)
	TrackTrace(message, severity string)
	TrackMetric(name string, value float64)
	TrackRequest(method, path string, statusCode int, duration time.Duration)
}

// TrackEventRequest is the request body for POST /api/Telemetry/event
type TrackEventRequest struct {
	Name       string            `json:"name" validate:"required"`
	Properties map[string]string `json:"properties,omitempty"`
}

// TrackTraceRequest is the request body for POST /api/Telemetry/trace
type TrackTraceRequest struct {
	Message  string `json:"message" validate:"required"`
	Severity string `json:"severity,omitempty" validate:"omitempty,oneof=verbose debug information info warning warn error critical fatal"`
}

// TrackMetricRequest is the request body for POST /api/Telemetry/metric
type TrackMetricRequest struct {
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value"`
}

// TelemetryHandler handles custom telemetry endpoints
type TelemetryHandler struct {
	service TelemetryService
	logger  *zap.Logger
}

// NewTelemetryHandler creates a new TelemetryHandler
func NewTelemetryHandler(service TelemetryService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		service: service,
		logger:  logger,
	}
}

// HandleTrackEvent handles POST /api/Telemetry/event.
// Telemetry is buffered client-side, so the response is 202.
func (h *TelemetryHandler) HandleTrackEvent(w http.ResponseWriter, r *http.Request) {
	var req TrackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	h.service.TrackEvent(req.Name, req.Properties)
	_ = utils.WriteAccepted(w, "Event accepted")
}

// HandleTrackTrace handles POST /api/Telemetry/trace
func (h *TelemetryHandler) HandleTrackTrace(w http.ResponseWriter, r *http.Request) {
	var req TrackTraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	h.service.TrackTrace(req.Message, req.Severity)
	_ = utils.WriteAccepted(w, "Trace accepted")
}

// HandleTrackMetric handles POST /api/Telemetry/metric
func (h *TelemetryHandler) HandleTrackMetric(w http.ResponseWriter, r *http.Request) {
	var req TrackMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	h.service.TrackMetric(req.Name, req.Value)
	_ = utils.WriteAccepted(w, "Metric accepted")
}
