package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/azure-ai-gateway/repositories"
	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// RequestsHandler serves the persisted request log
type RequestsHandler struct {
	repo   repositories.RequestLogRepository
	logger *zap.Logger
}

// NewRequestsHandler creates a new RequestsHandler
func NewRequestsHandler(repo repositories.RequestLogRepository, logger *zap.Logger) *RequestsHandler {
	return &RequestsHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /api/requests
func (h *RequestsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		_ = utils.WriteNotFound(w, "Request logging is not enabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	logs, err := h.repo.List(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list request logs", zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"requests": logs,
		"count":    len(logs),
	})
}

// HandleGet handles GET /api/requests/{id}
func (h *RequestsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		_ = utils.WriteNotFound(w, "Request logging is not enabled")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request log ID", nil)
		return
	}

	log, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.logger.Warn("request log lookup failed",
			zap.String("id", id.String()),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, log)
}
