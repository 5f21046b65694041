package azureopenai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/azure-ai-gateway/config"
	"github.com/upb/azure-ai-gateway/services"
	"go.uber.org/zap"
)

const serviceName = "azure_openai"

// defaultRetryDelay is the base backoff between retry attempts
const defaultRetryDelay = 500 * time.Millisecond

// TokenProvider supplies bearer tokens when managed identity is enabled.
// A nil provider means api-key authentication.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Adapter is a REST client for the Azure OpenAI data plane
type Adapter struct {
	config     config.AzureOpenAIConfig
	httpClient *http.Client
	tokens     TokenProvider
	logger     *zap.Logger
}

// NewAdapter creates a new Azure OpenAI adapter
func NewAdapter(cfg config.AzureOpenAIConfig, tokens TokenProvider, logger *zap.Logger) *Adapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Adapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// Name returns the adapter name
func (a *Adapter) Name() string {
	return serviceName
}

// ChatDeployment returns the configured chat deployment name
func (a *Adapter) ChatDeployment() string {
	return a.config.ChatDeployment
}

// Ping performs a minimal one-token chat round trip to verify connectivity
func (a *Adapter) Ping(ctx context.Context) error {
	_, err := a.ChatCompletion(ctx, &ChatRequest{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

// ChatCompletion performs a chat completion request
func (a *Adapter) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	body, err := json.Marshal(buildWireRequest(req, false))
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"failed to marshal chat request", err)
	}

	respBody, status, err := a.doWithRetry(ctx, a.deploymentURL(a.config.ChatDeployment, "chat/completions"), body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, a.decodeError(status, respBody)
	}

	var wire wireChatResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, services.NewExternal(serviceName,
			"failed to decode chat completion response", status, err)
	}
	if len(wire.Choices) == 0 {
		return nil, services.NewExternal(serviceName,
			"chat completion returned no choices", status, nil)
	}

	choice := wire.Choices[0]
	return &ChatResult{
		Content:      choice.Message.Content,
		Model:        wire.Model,
		FinishReason: choice.FinishReason,
		Usage:        wire.Usage,
	}, nil
}

// ChatCompletionStream performs a streamed chat completion, invoking onDelta
// for each content fragment. Returns the assembled result once the upstream
// stream terminates.
func (a *Adapter) ChatCompletionStream(ctx context.Context, req *ChatRequest, onDelta func(delta string) error) (*ChatResult, error) {
	body, err := json.Marshal(buildWireRequest(req, true))
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"failed to marshal chat request", err)
	}

	httpReq, err := a.newRequest(ctx, a.deploymentURL(a.config.ChatDeployment, "chat/completions"), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.NewExternal(serviceName, "chat stream request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, a.decodeError(resp.StatusCode, respBody)
	}

	var content strings.Builder
	finishReason := ""

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk wireStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			a.logger.Warn("skipping malformed stream chunk", zap.Error(err))
			continue
		}
		// The first Azure chunk carries content filter results and no choices
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil {
			finishReason = *choice.FinishReason
		}
		if choice.Delta.Content == "" {
			continue
		}
		content.WriteString(choice.Delta.Content)
		if err := onDelta(choice.Delta.Content); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.NewExternal(serviceName, "chat stream interrupted", 0, err)
	}

	return &ChatResult{
		Content:      content.String(),
		Model:        a.config.ChatDeployment,
		FinishReason: finishReason,
	}, nil
}

// Embeddings generates embedding vectors for the given texts
func (a *Adapter) Embeddings(ctx context.Context, texts []string) (*EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, services.ErrEmptyContent
	}

	body, err := json.Marshal(wireEmbeddingsRequest{Input: texts})
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"failed to marshal embeddings request", err)
	}

	respBody, status, err := a.doWithRetry(ctx, a.deploymentURL(a.config.EmbeddingDeployment, "embeddings"), body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, a.decodeError(status, respBody)
	}

	var wire wireEmbeddingsResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, services.NewExternal(serviceName,
			"failed to decode embeddings response", status, err)
	}

	// Order by index: the service does not guarantee response order
	vectors := make([][]float32, len(texts))
	for _, d := range wire.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, services.NewExternal(serviceName,
				fmt.Sprintf("embedding index %d out of range", d.Index), status, nil)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, services.NewExternal(serviceName,
				fmt.Sprintf("embedding missing for input %d", i), status, nil)
		}
	}

	return &EmbeddingResult{
		Vectors: vectors,
		Model:   wire.Model,
		Usage:   wire.Usage,
	}, nil
}

// EmbedTexts returns only the vectors, in input order
func (a *Adapter) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := a.Embeddings(ctx, texts)
	if err != nil {
		return nil, err
	}
	return result.Vectors, nil
}

// deploymentURL builds the data-plane URL for a deployment operation
func (a *Adapter) deploymentURL(deployment, operation string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		strings.TrimSuffix(a.config.Endpoint, "/"),
		url.PathEscape(deployment),
		operation,
		url.QueryEscape(a.config.APIVersion))
}

// newRequest builds an authorized POST request
func (a *Adapter) newRequest(ctx context.Context, requestURL string, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if a.tokens != nil {
		token, err := a.tokens.Token(ctx)
		if err != nil {
			return nil, services.NewExternal(serviceName, "failed to acquire bearer token", 0, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	} else {
		httpReq.Header.Set("api-key", a.config.APIKey)
	}

	return httpReq, nil
}

// doWithRetry executes the request, retrying transient failures (network
// errors, 429 and 5xx) with linear backoff.
func (a *Adapter) doWithRetry(ctx context.Context, requestURL string, body []byte) ([]byte, int, error) {
	var lastErr error
	var lastStatus int
	var lastBody []byte

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, services.NewExternal(serviceName, "request cancelled", 0, ctx.Err())
			case <-time.After(defaultRetryDelay * time.Duration(attempt)):
			}
			a.logger.Debug("retrying azure openai request",
				zap.Int("attempt", attempt),
				zap.String("url", requestURL))
		}

		httpReq, err := a.newRequest(ctx, requestURL, body)
		if err != nil {
			return nil, 0, err
		}

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		lastStatus = resp.StatusCode
		lastBody = respBody
		lastErr = nil

		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return respBody, resp.StatusCode, nil
		}
	}

	if lastErr != nil {
		return nil, 0, services.NewExternal(serviceName, "request failed", 0, lastErr)
	}
	return lastBody, lastStatus, nil
}

// decodeError converts an Azure OpenAI error envelope into a domain error
func (a *Adapter) decodeError(status int, body []byte) error {
	var wire wireErrorResponse
	if err := json.Unmarshal(body, &wire); err != nil || wire.Error.Message == "" {
		return services.NewExternal(serviceName,
			fmt.Sprintf("upstream returned status %d", status), status, nil)
	}

	de := services.NewExternal(serviceName, wire.Error.Message, status, nil)
	if wire.Error.Code != "" {
		de.Details["code"] = wire.Error.Code
	}
	return de
}

// buildWireRequest converts the service-level request to the wire format
func buildWireRequest(req *ChatRequest, stream bool) *wireChatRequest {
	wire := &wireChatRequest{
		Messages: req.Messages,
		Stream:   stream,
	}
	if req.MaxTokens > 0 {
		wire.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		wire.Temperature = &req.Temperature
	}
	return wire
}
