package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeDBChecker struct{ err error }

func (f *fakeDBChecker) HealthCheck(ctx context.Context) error { return f.err }

func TestHandleHealth(t *testing.T) {
	h := NewHealthHandler("1.2.3", nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1.2.3")
}

func TestHandleReady(t *testing.T) {
	t.Run("database ok", func(t *testing.T) {
		h := NewHealthHandler("dev", &fakeDBChecker{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		h.HandleReady(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ready"`)
		assert.Contains(t, rec.Body.String(), `"database":"ok"`)
	})

	t.Run("database down", func(t *testing.T) {
		h := NewHealthHandler("dev", &fakeDBChecker{err: errors.New("connection refused")}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		h.HandleReady(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"degraded"`)
	})

	t.Run("no database configured", func(t *testing.T) {
		h := NewHealthHandler("dev", nil, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		h.HandleReady(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), `"database"`)
	})

	t.Run("no upstream services probed", func(t *testing.T) {
		h := NewHealthHandler("dev", &fakeDBChecker{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		h.HandleReady(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "azure_openai")
	})
}
