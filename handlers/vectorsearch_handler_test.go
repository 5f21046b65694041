package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/azure-ai-gateway/services"
	"github.com/upb/azure-ai-gateway/services/audit"
	"github.com/upb/azure-ai-gateway/services/search"
	"go.uber.org/zap"
)

type fakeVectorSearch struct {
	lastOp     string
	lastQuery  string
	lastTop    int
	lastFilter string
	results    *search.Results
	err        error
}

func (f *fakeVectorSearch) VectorSearch(ctx context.Context, query string, top int, filter string) (*search.Results, error) {
	f.lastOp = "vector"
	f.lastQuery = query
	f.lastTop = top
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeVectorSearch) HybridSearch(ctx context.Context, query string, top int, filter string) (*search.Results, error) {
	f.lastOp = "hybrid"
	f.lastQuery = query
	f.lastTop = top
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newVectorSearchHandler(svc *fakeVectorSearch) *VectorSearchHandler {
	return NewVectorSearchHandler(svc, audit.NewRecorder(nil, zap.NewNop()), zap.NewNop())
}

func TestHandleVectorSearch(t *testing.T) {
	svc := &fakeVectorSearch{results: &search.Results{
		Count: 1,
		Results: []search.Result{
			{Score: 0.88, Fields: map[string]interface{}{"id": "a"}},
		},
	}}
	h := newVectorSearchHandler(svc)

	body := `{"query":"compiled languages","k":7,"filter":"lang eq 'go'"}`
	req := httptest.NewRequest(http.MethodPost, "/api/VectorSearch/vector-search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleVectorSearch(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vector", svc.lastOp)
	assert.Equal(t, "compiled languages", svc.lastQuery)
	assert.Equal(t, 7, svc.lastTop)
	assert.Equal(t, "lang eq 'go'", svc.lastFilter)
}

func TestHandleHybridSearch(t *testing.T) {
	svc := &fakeVectorSearch{results: &search.Results{}}
	h := newVectorSearchHandler(svc)

	body := `{"query":"compiled languages"}`
	req := httptest.NewRequest(http.MethodPost, "/api/VectorSearch/hybrid-search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleHybridSearch(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hybrid", svc.lastOp)
}

func TestHandleVectorSearchValidation(t *testing.T) {
	h := newVectorSearchHandler(&fakeVectorSearch{})

	req := httptest.NewRequest(http.MethodPost, "/api/VectorSearch/vector-search",
		strings.NewReader(`{"k":5}`))
	rec := httptest.NewRecorder()
	h.HandleVectorSearch(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVectorSearchUpstreamError(t *testing.T) {
	h := newVectorSearchHandler(&fakeVectorSearch{
		err: services.NewExternal("cognitive_search", "index offline", 503, nil),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/VectorSearch/hybrid-search",
		strings.NewReader(`{"query":"x"}`))
	rec := httptest.NewRecorder()
	h.HandleHybridSearch(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
