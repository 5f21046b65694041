package telemetry

import (
	"testing"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights/contracts"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDisabledServiceIsNoOp(t *testing.T) {
	svc := New("", "azure-ai-gateway", zap.NewNop())
	assert.False(t, svc.Enabled())

	// none of these may panic with a nil client
	svc.TrackEvent("interview.started", map[string]string{"topic": "rag"})
	svc.TrackTrace("hello", "warning")
	svc.TrackMetric("chunks.indexed", 12)
	svc.TrackRequest("GET", "/health", 200, 3*time.Millisecond)
	svc.Close(time.Second)
}

func TestEnabledService(t *testing.T) {
	svc := New("00000000-0000-0000-0000-000000000000", "azure-ai-gateway", zap.NewNop())
	assert.True(t, svc.Enabled())
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want contracts.SeverityLevel
	}{
		{"verbose", contracts.Verbose},
		{"debug", contracts.Verbose},
		{"", contracts.Information},
		{"info", contracts.Information},
		{"Information", contracts.Information},
		{"WARNING", contracts.Warning},
		{"warn", contracts.Warning},
		{"error", contracts.Error},
		{"critical", contracts.Critical},
		{"fatal", contracts.Critical},
		{"bogus", contracts.Information},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSeverity(tt.in), "severity %q", tt.in)
	}
}
