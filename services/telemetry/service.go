package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/microsoft/ApplicationInsights-Go/appinsights/contracts"
	"go.uber.org/zap"
)

// Service forwards custom telemetry to Application Insights. A nil client
// (no instrumentation key configured) turns every call into a no-op, so the
// rest of the gateway never has to check whether telemetry is enabled.
type Service struct {
	client appinsights.TelemetryClient
	logger *zap.Logger
}

// New creates the telemetry service. An empty instrumentation key disables it.
func New(instrumentationKey, roleName string, logger *zap.Logger) *Service {
	if instrumentationKey == "" {
		logger.Info("application insights not configured, telemetry disabled")
		return &Service{logger: logger}
	}

	cfg := appinsights.NewTelemetryConfiguration(instrumentationKey)
	cfg.MaxBatchInterval = 2 * time.Second

	client := appinsights.NewTelemetryClientFromConfig(cfg)
	if roleName != "" {
		client.Context().Tags.Cloud().SetRole(roleName)
	}

	logger.Info("application insights telemetry enabled",
		zap.String("role", roleName))

	return &Service{
		client: client,
		logger: logger,
	}
}

// Enabled reports whether telemetry is being sent
func (s *Service) Enabled() bool {
	return s.client != nil
}

// TrackEvent submits a custom event with optional properties
func (s *Service) TrackEvent(name string, properties map[string]string) {
	if s.client == nil {
		return
	}
	event := appinsights.NewEventTelemetry(name)
	for k, v := range properties {
		event.Properties[k] = v
	}
	s.client.Track(event)
}

// TrackTrace submits a trace message at the given severity
func (s *Service) TrackTrace(message, severity string) {
	if s.client == nil {
		return
	}
	s.client.TrackTrace(message, ParseSeverity(severity))
}

// TrackMetric submits a single metric sample
func (s *Service) TrackMetric(name string, value float64) {
	if s.client == nil {
		return
	}
	s.client.TrackMetric(name, value)
}

// TrackRequest submits one inbound HTTP request measurement
func (s *Service) TrackRequest(method, path string, statusCode int, duration time.Duration) {
	if s.client == nil {
		return
	}
	req := appinsights.NewRequestTelemetry(method, path, duration, strconv.Itoa(statusCode))
	req.Success = statusCode < 500
	s.client.Track(req)
}

// Close flushes buffered telemetry, waiting up to the given timeout
func (s *Service) Close(timeout time.Duration) {
	if s.client == nil {
		return
	}

	select {
	case <-s.client.Channel().Close(timeout):
	case <-time.After(timeout + time.Second):
		s.logger.Warn("telemetry flush timed out")
	}
}

// ParseSeverity maps a severity name to the Application Insights level.
// Unknown values fall back to information.
func ParseSeverity(severity string) contracts.SeverityLevel {
	switch strings.ToLower(severity) {
	case "verbose", "debug":
		return contracts.Verbose
	case "warning", "warn":
		return contracts.Warning
	case "error":
		return contracts.Error
	case "critical", "fatal":
		return contracts.Critical
	case "", "information", "info":
		return contracts.Information
	default:
		return contracts.Information
	}
}
