package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/upb/azure-ai-gateway/middleware"
	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/services/audit"
	"github.com/upb/azure-ai-gateway/services/rag"
	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// RAGService defines the retrieval pipeline operations the handler needs
type RAGService interface {
	Query(ctx context.Context, question string, top int) (*rag.Answer, error)
	Ingest(ctx context.Context, doc models.Document) (*rag.IngestResult, error)
	IngestBatch(ctx context.Context, docs []models.Document) (*rag.BatchResult, error)
}

// RAGQueryRequest is the request body for POST /api/Rag/query
type RAGQueryRequest struct {
	Question string `json:"question" validate:"required"`
	Top      int    `json:"top,omitempty" validate:"omitempty,gt=0,lte=50"`
}

// IngestRequest is the request body for POST /api/Rag/ingest
type IngestRequest struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content" validate:"required"`
	SourceURL string `json:"sourceUrl,omitempty" validate:"omitempty,url"`
}

// IngestBatchRequest is the request body for POST /api/Rag/ingest-batch
type IngestBatchRequest struct {
	Documents []IngestRequest `json:"documents" validate:"required,min=1,dive"`
}

// RAGHandler handles retrieval-augmented generation endpoints
type RAGHandler struct {
	service  RAGService
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewRAGHandler creates a new RAGHandler
func NewRAGHandler(service RAGService, recorder *audit.Recorder, logger *zap.Logger) *RAGHandler {
	return &RAGHandler{
		service:  service,
		recorder: recorder,
		logger:   logger,
	}
}

// HandleQuery handles POST /api/Rag/query
func (h *RAGHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req RAGQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	entry := models.NewRequestLog(models.ServiceRAG, "query", requestID)
	start := time.Now()

	answer, err := h.service.Query(ctx, req.Question, req.Top)
	if err != nil {
		h.logger.Error("rag query failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		HandleServiceError(w, err, h.logger)
		return
	}

	entry.Model = answer.Model
	entry.PromptTokens = answer.Usage.PromptTokens
	entry.CompletionTokens = answer.Usage.CompletionTokens
	entry.Complete(http.StatusOK, time.Since(start))
	h.recorder.Record(entry)

	h.logger.Info("rag query completed",
		zap.String("request_id", requestID),
		zap.Int("sources", len(answer.Sources)),
		zap.Int("latency_ms", entry.LatencyMs))

	_ = utils.WriteOK(w, answer)
}

// HandleIngest handles POST /api/Rag/ingest
func (h *RAGHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	entry := models.NewRequestLog(models.ServiceRAG, "ingest", requestID)
	start := time.Now()

	result, err := h.service.Ingest(ctx, toDocument(req))
	if err != nil {
		h.logger.Error("ingest failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		HandleServiceError(w, err, h.logger)
		return
	}

	entry.Complete(http.StatusCreated, time.Since(start))
	h.recorder.Record(entry)

	h.logger.Info("document ingested",
		zap.String("request_id", requestID),
		zap.String("document_id", result.DocumentID),
		zap.Int("chunks", result.Chunks))

	_ = utils.WriteCreated(w, result)
}

// HandleIngestBatch handles POST /api/Rag/ingest-batch
func (h *RAGHandler) HandleIngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req IngestBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	docs := make([]models.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = toDocument(d)
	}

	entry := models.NewRequestLog(models.ServiceRAG, "ingest-batch", requestID)
	start := time.Now()

	result, err := h.service.IngestBatch(ctx, docs)
	if err != nil {
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		HandleServiceError(w, err, h.logger)
		return
	}

	entry.Complete(http.StatusOK, time.Since(start))
	h.recorder.Record(entry)

	h.logger.Info("batch ingested",
		zap.String("request_id", requestID),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))

	_ = utils.WriteOK(w, result)
}

func toDocument(req IngestRequest) models.Document {
	return models.Document{
		ID:        req.ID,
		Title:     req.Title,
		Content:   req.Content,
		SourceURL: req.SourceURL,
	}
}
