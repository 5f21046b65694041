package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/azure-ai-gateway/middleware"
	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/services/audit"
	"github.com/upb/azure-ai-gateway/services/azureopenai"
	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// OpenAIService defines the chat and embedding operations the handler needs
type OpenAIService interface {
	Ping(ctx context.Context) error
	ChatDeployment() string
	ChatCompletion(ctx context.Context, req *azureopenai.ChatRequest) (*azureopenai.ChatResult, error)
	ChatCompletionStream(ctx context.Context, req *azureopenai.ChatRequest, onDelta func(delta string) error) (*azureopenai.ChatResult, error)
	Embeddings(ctx context.Context, texts []string) (*azureopenai.EmbeddingResult, error)
}

// ChatRequest is the request body for POST /api/AzureOpenAI/chat
type ChatRequest struct {
	Message      string  `json:"message" validate:"required"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	MaxTokens    int     `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
	Temperature  float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// ChatResponse is the response body for chat completions
type ChatResponse struct {
	Response         string `json:"response"`
	Model            string `json:"model"`
	FinishReason     string `json:"finishReason,omitempty"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	TotalTokens      int    `json:"totalTokens"`
}

// EmbeddingsRequest is the request body for POST /api/AzureOpenAI/embeddings.
// Either a single text or a batch may be supplied.
type EmbeddingsRequest struct {
	Text  string   `json:"text,omitempty"`
	Texts []string `json:"texts,omitempty"`
}

// Inputs collapses the two accepted shapes into one batch
func (r *EmbeddingsRequest) Inputs() []string {
	if len(r.Texts) > 0 {
		return r.Texts
	}
	if r.Text != "" {
		return []string{r.Text}
	}
	return nil
}

// EmbeddingsResponse is the response body for embeddings
type EmbeddingsResponse struct {
	Embeddings [][]float32       `json:"embeddings"`
	Dimensions int               `json:"dimensions"`
	Model      string            `json:"model"`
	Usage      azureopenai.Usage `json:"usage"`
}

// OpenAIHandler handles Azure OpenAI proxy endpoints
type OpenAIHandler struct {
	service  OpenAIService
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewOpenAIHandler creates a new OpenAIHandler
func NewOpenAIHandler(service OpenAIService, recorder *audit.Recorder, logger *zap.Logger) *OpenAIHandler {
	return &OpenAIHandler{
		service:  service,
		recorder: recorder,
		logger:   logger,
	}
}

// HandleTest handles GET /api/AzureOpenAI/test
func (h *OpenAIHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("openai connectivity test failed", zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"status":     "connected",
		"deployment": h.service.ChatDeployment(),
	})
}

// HandleChat handles POST /api/AzureOpenAI/chat
func (h *OpenAIHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	chatReq, ok := h.decodeChatRequest(w, r, requestID)
	if !ok {
		return
	}

	entry := models.NewRequestLog(models.ServiceAzureOpenAI, "chat", requestID)
	start := time.Now()

	result, err := h.service.ChatCompletion(ctx, toServiceChatRequest(chatReq))
	if err != nil {
		h.logger.Error("chat completion failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		HandleServiceError(w, err, h.logger)
		return
	}

	entry.Model = result.Model
	entry.PromptTokens = result.Usage.PromptTokens
	entry.CompletionTokens = result.Usage.CompletionTokens
	entry.Complete(http.StatusOK, time.Since(start))
	h.recorder.Record(entry)

	h.logger.Info("chat completion successful",
		zap.String("request_id", requestID),
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Int("latency_ms", entry.LatencyMs))

	_ = utils.WriteOK(w, ChatResponse{
		Response:         result.Content,
		Model:            result.Model,
		FinishReason:     result.FinishReason,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
	})
}

// streamChunk is one SSE payload sent during streaming chat
type streamChunk struct {
	Delta string `json:"delta"`
}

// HandleChatStream handles POST /api/AzureOpenAI/chat-stream.
// Deltas are written as server-sent events, terminated by a [DONE] marker.
func (h *OpenAIHandler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	chatReq, ok := h.decodeChatRequest(w, r, requestID)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support streaming",
			zap.String("request_id", requestID))
		_ = utils.WriteInternalServerError(w, "Streaming not supported")
		return
	}

	serviceReq := toServiceChatRequest(chatReq)
	serviceReq.Stream = true

	entry := models.NewRequestLog(models.ServiceAzureOpenAI, "chat-stream", requestID)
	start := time.Now()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	wroteAny := false
	result, err := h.service.ChatCompletionStream(ctx, serviceReq, func(delta string) error {
		payload, err := json.Marshal(streamChunk{Delta: delta})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		wroteAny = true
		return nil
	})
	if err != nil {
		h.logger.Error("streaming chat completion failed",
			zap.String("request_id", requestID),
			zap.Bool("partial", wroteAny),
			zap.Error(err))
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		// headers are already out; signal the failure in-stream
		fmt.Fprintf(w, "data: {\"error\":%q}\n\n", err.Error())
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	entry.Model = result.Model
	entry.PromptTokens = result.Usage.PromptTokens
	entry.CompletionTokens = result.Usage.CompletionTokens
	entry.Complete(http.StatusOK, time.Since(start))
	h.recorder.Record(entry)

	h.logger.Info("streaming chat completion finished",
		zap.String("request_id", requestID),
		zap.String("model", result.Model),
		zap.Int("latency_ms", entry.LatencyMs))
}

// HandleEmbeddings handles POST /api/AzureOpenAI/embeddings
func (h *OpenAIHandler) HandleEmbeddings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req EmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	inputs := req.Inputs()
	if len(inputs) == 0 {
		_ = utils.WriteBadRequest(w, "Either 'text' or 'texts' is required", nil)
		return
	}

	entry := models.NewRequestLog(models.ServiceAzureOpenAI, "embeddings", requestID)
	start := time.Now()

	result, err := h.service.Embeddings(ctx, inputs)
	if err != nil {
		h.logger.Error("embeddings failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		entry.Fail(http.StatusBadGateway, time.Since(start), err)
		h.recorder.Record(entry)
		HandleServiceError(w, err, h.logger)
		return
	}

	entry.Model = result.Model
	entry.PromptTokens = result.Usage.PromptTokens
	entry.Complete(http.StatusOK, time.Since(start))
	h.recorder.Record(entry)

	_ = utils.WriteOK(w, EmbeddingsResponse{
		Embeddings: result.Vectors,
		Dimensions: result.Dimensions(),
		Model:      result.Model,
		Usage:      result.Usage,
	})
}

func (h *OpenAIHandler) decodeChatRequest(w http.ResponseWriter, r *http.Request, requestID string) (*ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return nil, false
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, false
	}
	return &req, true
}

func toServiceChatRequest(req *ChatRequest) *azureopenai.ChatRequest {
	var messages []azureopenai.Message
	if req.SystemPrompt != "" {
		messages = append(messages, azureopenai.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, azureopenai.Message{Role: "user", Content: req.Message})
	return &azureopenai.ChatRequest{
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}
