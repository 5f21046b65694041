package models

import (
	"time"

	"github.com/google/uuid"
)

// Service names recorded in the request log
const (
	ServiceAzureOpenAI  = "azure_openai"
	ServiceSearch       = "cognitive_search"
	ServiceRAG          = "rag"
	ServiceVectorSearch = "vector_search"
)

// RequestLog records one gateway call against an Azure-backed pipeline.
// Rows are written fire-and-forget; a failed insert never fails the request.
type RequestLog struct {
	ID               uuid.UUID `json:"id"`
	RequestID        string    `json:"request_id"`
	Service          string    `json:"service"`
	Operation        string    `json:"operation"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMs        int       `json:"latency_ms"`
	StatusCode       int       `json:"status_code"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewRequestLog creates a request log entry for the given service operation
func NewRequestLog(service, operation, requestID string) *RequestLog {
	return &RequestLog{
		ID:        uuid.New(),
		RequestID: requestID,
		Service:   service,
		Operation: operation,
		CreatedAt: time.Now().UTC(),
	}
}

// Complete marks the entry finished with the given HTTP status
func (l *RequestLog) Complete(statusCode int, latency time.Duration) {
	l.StatusCode = statusCode
	l.LatencyMs = int(latency.Milliseconds())
}

// Fail marks the entry failed and records the error message
func (l *RequestLog) Fail(statusCode int, latency time.Duration, err error) {
	l.Complete(statusCode, latency)
	if err != nil {
		msg := err.Error()
		l.ErrorMessage = &msg
	}
}

// TotalTokens returns the combined prompt and completion token count
func (l *RequestLog) TotalTokens() int {
	return l.PromptTokens + l.CompletionTokens
}
