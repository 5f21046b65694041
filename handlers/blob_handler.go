package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/azure-ai-gateway/middleware"
	"github.com/upb/azure-ai-gateway/services/blob"
	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// maxUploadSize caps multipart uploads at 100 MiB
const maxUploadSize = 100 << 20

// defaultSASValidity is used when the request does not specify one
const defaultSASValidity = time.Hour

// BlobService defines the storage operations the handler needs
type BlobService interface {
	Container() string
	Upload(ctx context.Context, name, contentType string, body io.Reader) (*blob.BlobInfo, error)
	UploadText(ctx context.Context, name, contentType, content string) (*blob.BlobInfo, error)
	Download(ctx context.Context, name string) (io.ReadCloser, *blob.BlobInfo, error)
	List(ctx context.Context) ([]blob.BlobInfo, error)
	Delete(ctx context.Context, name string) error
	GenerateSAS(name string, validFor time.Duration) (*blob.SASInfo, error)
}

// UploadTextRequest is the request body for POST /api/BlobStorage/upload-text
type UploadTextRequest struct {
	Name        string `json:"name" validate:"required"`
	Content     string `json:"content" validate:"required"`
	ContentType string `json:"contentType,omitempty"`
}

// SASRequest is the request body for POST /api/BlobStorage/sas/{name}
type SASRequest struct {
	ExpiryMinutes int `json:"expiryMinutes,omitempty" validate:"omitempty,gt=0,lte=10080"`
}

// BlobHandler handles blob storage endpoints
type BlobHandler struct {
	service BlobService
	logger  *zap.Logger
}

// NewBlobHandler creates a new BlobHandler
func NewBlobHandler(service BlobService, logger *zap.Logger) *BlobHandler {
	return &BlobHandler{
		service: service,
		logger:  logger,
	}
}

// HandleUpload handles POST /api/BlobStorage/upload (multipart form, field "file")
func (h *BlobHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Warn("failed to parse multipart form",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid multipart form", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Form field 'file' is required", nil)
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	info, err := h.service.Upload(ctx, name, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.Error("blob upload failed",
			zap.String("request_id", requestID),
			zap.String("blob", name),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("blob uploaded",
		zap.String("request_id", requestID),
		zap.String("blob", info.Name),
		zap.Int64("size", info.Size))

	_ = utils.WriteCreated(w, info)
}

// HandleUploadText handles POST /api/BlobStorage/upload-text
func (h *BlobHandler) HandleUploadText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req UploadTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}

	info, err := h.service.UploadText(ctx, req.Name, contentType, req.Content)
	if err != nil {
		h.logger.Error("text upload failed",
			zap.String("request_id", requestID),
			zap.String("blob", req.Name),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, info)
}

// HandleDownload handles GET /api/BlobStorage/download/{name}.
// The blob is streamed back raw with its stored content type.
func (h *BlobHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	name := chi.URLParam(r, "name")
	if name == "" {
		_ = utils.WriteBadRequest(w, "Blob name is required", nil)
		return
	}

	body, info, err := h.service.Download(ctx, name)
	if err != nil {
		h.logger.Warn("blob download failed",
			zap.String("request_id", requestID),
			zap.String("blob", name),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}
	defer body.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("blob stream interrupted",
			zap.String("request_id", requestID),
			zap.String("blob", name),
			zap.Error(err))
	}
}

// HandleList handles GET /api/BlobStorage/list
func (h *BlobHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	blobs, err := h.service.List(ctx)
	if err != nil {
		h.logger.Error("blob list failed", zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"container": h.service.Container(),
		"blobs":     blobs,
		"count":     len(blobs),
	})
}

// HandleGenerateSAS handles POST /api/BlobStorage/sas/{name}
func (h *BlobHandler) HandleGenerateSAS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		_ = utils.WriteBadRequest(w, "Blob name is required", nil)
		return
	}

	// body is optional; absence means default validity
	var req SASRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			_ = utils.WriteBadRequest(w, "Invalid request body", nil)
			return
		}
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	validFor := defaultSASValidity
	if req.ExpiryMinutes > 0 {
		validFor = time.Duration(req.ExpiryMinutes) * time.Minute
	}

	info, err := h.service.GenerateSAS(name, validFor)
	if err != nil {
		h.logger.Warn("sas generation failed",
			zap.String("blob", name),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, info)
}

// HandleDelete handles DELETE /api/BlobStorage/{name}
func (h *BlobHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	name := chi.URLParam(r, "name")
	if name == "" {
		_ = utils.WriteBadRequest(w, "Blob name is required", nil)
		return
	}

	if err := h.service.Delete(ctx, name); err != nil {
		h.logger.Warn("blob delete failed",
			zap.String("request_id", requestID),
			zap.String("blob", name),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]string{"deleted": name})
}
