package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/services"
	"go.uber.org/zap"
)

type fakeLogRepo struct {
	logs       []*models.RequestLog
	byID       map[uuid.UUID]*models.RequestLog
	lastLimit  int
	lastOffset int
}

func (f *fakeLogRepo) Insert(ctx context.Context, log *models.RequestLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestLog, error) {
	if log, ok := f.byID[id]; ok {
		return log, nil
	}
	return nil, services.ErrRequestLogNotFound
}

func (f *fakeLogRepo) List(ctx context.Context, limit, offset int) ([]*models.RequestLog, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	return f.logs, nil
}

func TestHandleListRequests(t *testing.T) {
	log := models.NewRequestLog(models.ServiceAzureOpenAI, "chat", "req-1")
	repo := &fakeLogRepo{logs: []*models.RequestLog{log}}
	h := NewRequestsHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/requests?limit=10&offset=5", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Equal(t, 10, repo.lastLimit)
	assert.Equal(t, 5, repo.lastOffset)
}

func TestHandleGetRequest(t *testing.T) {
	log := models.NewRequestLog(models.ServiceRAG, "query", "req-2")
	repo := &fakeLogRepo{byID: map[uuid.UUID]*models.RequestLog{log.ID: log}}
	h := NewRequestsHandler(repo, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/api/requests/{id}", h.HandleGet)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/requests/"+log.ID.String(), nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "req-2")
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/requests/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/requests/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
