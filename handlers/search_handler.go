package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/azure-ai-gateway/middleware"
	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/services/audit"
	"github.com/upb/azure-ai-gateway/services/search"
	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// documentKeyField is the key field of the search index schema
const documentKeyField = "id"

// SearchService defines the index operations the handler needs
type SearchService interface {
	IndexName() string
	Search(ctx context.Context, query *search.Query) (*search.Results, error)
	IndexDocuments(ctx context.Context, action string, docs []map[string]interface{}) (*search.IndexResult, error)
	DeleteDocument(ctx context.Context, keyField, key string) (*search.IndexResult, error)
}

// SearchRequest is the request body for POST /api/CognitiveSearch/search
type SearchRequest struct {
	Query  string `json:"query"`
	Top    int    `json:"top,omitempty" validate:"omitempty,gt=0,lte=100"`
	Filter string `json:"filter,omitempty"`
}

// IndexDocumentRequest is the request body for POST /api/CognitiveSearch/index
type IndexDocumentRequest struct {
	Document map[string]interface{} `json:"document" validate:"required"`
}

// IndexBatchRequest is the request body for POST /api/CognitiveSearch/index-batch
type IndexBatchRequest struct {
	Documents []map[string]interface{} `json:"documents" validate:"required,min=1"`
}

// SearchHandler handles Azure Cognitive Search proxy endpoints
type SearchHandler struct {
	service  SearchService
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(service SearchService, recorder *audit.Recorder, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		service:  service,
		recorder: recorder,
		logger:   logger,
	}
}

// HandleSearch handles POST /api/CognitiveSearch/search
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	entry := models.NewRequestLog(models.ServiceSearch, "search", requestID)
	start := time.Now()

	results, err := h.service.Search(ctx, &search.Query{
		Text:   req.Query,
		Top:    req.Top,
		Filter: req.Filter,
	})
	if err != nil {
		h.logger.Error("search failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		HandleServiceError(w, err, h.logger)
		return
	}

	entry.Complete(http.StatusOK, time.Since(start))
	h.recorder.Record(entry)

	h.logger.Info("search completed",
		zap.String("request_id", requestID),
		zap.String("index", h.service.IndexName()),
		zap.Int("results", len(results.Results)))

	_ = utils.WriteOK(w, results)
}

// HandleIndexDocument handles POST /api/CognitiveSearch/index
func (h *SearchHandler) HandleIndexDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req IndexDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.IndexDocuments(ctx, search.ActionMergeOrUpload,
		[]map[string]interface{}{req.Document})
	if err != nil {
		h.logger.Error("index document failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleIndexBatch handles POST /api/CognitiveSearch/index-batch
func (h *SearchHandler) HandleIndexBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req IndexBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.IndexDocuments(ctx, search.ActionMergeOrUpload, req.Documents)
	if err != nil {
		h.logger.Error("index batch failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("index batch completed",
		zap.String("request_id", requestID),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))

	_ = utils.WriteOK(w, result)
}

// HandleDeleteDocument handles DELETE /api/CognitiveSearch/document/{key}
func (h *SearchHandler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	key := chi.URLParam(r, "key")
	if key == "" {
		_ = utils.WriteBadRequest(w, "Document key is required", nil)
		return
	}

	result, err := h.service.DeleteDocument(ctx, documentKeyField, key)
	if err != nil {
		h.logger.Error("delete document failed",
			zap.String("request_id", requestID),
			zap.String("key", key),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}
