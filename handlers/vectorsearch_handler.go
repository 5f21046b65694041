package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/upb/azure-ai-gateway/middleware"
	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/services/audit"
	"github.com/upb/azure-ai-gateway/services/search"
	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// VectorSearchService defines the embedding-backed search operations
type VectorSearchService interface {
	VectorSearch(ctx context.Context, query string, top int, filter string) (*search.Results, error)
	HybridSearch(ctx context.Context, query string, top int, filter string) (*search.Results, error)
}

// VectorSearchRequest is the request body for the vector search endpoints
type VectorSearchRequest struct {
	Query  string `json:"query" validate:"required"`
	K      int    `json:"k,omitempty" validate:"omitempty,gt=0,lte=100"`
	Filter string `json:"filter,omitempty"`
}

// VectorSearchHandler handles embedding-backed search endpoints
type VectorSearchHandler struct {
	service  VectorSearchService
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewVectorSearchHandler creates a new VectorSearchHandler
func NewVectorSearchHandler(service VectorSearchService, recorder *audit.Recorder, logger *zap.Logger) *VectorSearchHandler {
	return &VectorSearchHandler{
		service:  service,
		recorder: recorder,
		logger:   logger,
	}
}

// HandleVectorSearch handles POST /api/VectorSearch/vector-search
func (h *VectorSearchHandler) HandleVectorSearch(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "vector-search", h.service.VectorSearch)
}

// HandleHybridSearch handles POST /api/VectorSearch/hybrid-search
func (h *VectorSearchHandler) HandleHybridSearch(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "hybrid-search", h.service.HybridSearch)
}

func (h *VectorSearchHandler) handle(w http.ResponseWriter, r *http.Request, operation string,
	searchFn func(ctx context.Context, query string, top int, filter string) (*search.Results, error)) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req VectorSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	entry := models.NewRequestLog(models.ServiceVectorSearch, operation, requestID)
	start := time.Now()

	results, err := searchFn(ctx, req.Query, req.K, req.Filter)
	if err != nil {
		h.logger.Error("vector search failed",
			zap.String("request_id", requestID),
			zap.String("operation", operation),
			zap.Error(err))
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		HandleServiceError(w, err, h.logger)
		return
	}

	entry.Complete(http.StatusOK, time.Since(start))
	h.recorder.Record(entry)

	h.logger.Info("vector search completed",
		zap.String("request_id", requestID),
		zap.String("operation", operation),
		zap.Int("results", len(results.Results)))

	_ = utils.WriteOK(w, results)
}
