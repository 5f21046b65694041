package search

import (
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

const serviceName = "cognitive_search"

const defaultRetryDelay = 500 * time.Millisecond

// Index batch actions
const (
	ActionMergeOrUpload = "mergeOrUpload"
	ActionUpload        = "upload"
	ActionDelete        = "delete"
)

// TokenProvider supplies bearer tokens when managed identity is enabled.
// A nil provider means api-key authentication.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client is a REST client for the Azure Cognitive Search data plane.
// All ranking (BM25, HNSW, RRF) happens inside the service; this client only
// sets request parameters and forwards responses.
type Client struct {
	config     config.SearchConfig
	httpClient *http.Client
	tokens     TokenProvider
	logger     *zap.Logger
}

// NewClient creates a new search client
func NewClient(cfg config.SearchConfig, tokens TokenProvider, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// IndexName returns the configured index name
func (c *Client) IndexName() string {
	return c.config.IndexName
}

// Query describes one search call. Text-only queries run keyword search,
// vector-only queries run ANN search, and both together run hybrid search
// (the service fuses rankings with RRF).
type Query struct {
	Text        string
	Top         int
	Filter      string
	Vector      []float32
	VectorField string
}

// Result is one matching document with its service-assigned score
type Result struct {
	Score  float64                `json:"score"`
	Fields map[string]interface{} `json:"fields"`
}

// Results is a full search response
type Results struct {
	Results []Result `json:"results"`
	Count   int64    `json:"count"`
}

// Search executes a query against the configured index. An empty query text
// with no vector searches everything (`*`).
func (c *Client) Search(ctx context.Context, query *Query) (*Results, error) {
	top := query.Top
	if top <= 0 {
		top = 10
	}

	wire := map[string]interface{}{
		"top":   top,
		"count": true,
	}
	if query.Filter != "" {
		wire["filter"] = query.Filter
	}

	hasVector := len(query.Vector) > 0
	if hasVector {
		field := query.VectorField
		if field == "" {
			field = "contentVector"
		}
		wire["vectorQueries"] = []map[string]interface{}{{
			"kind":   "vector",
			"vector": query.Vector,
			"fields": field,
			"k":      top,
		}}
	}

	switch {
	case query.Text != "":
		wire["search"] = query.Text
	case !hasVector:
		// empty keyword query matches everything
		wire["search"] = "*"
	}

	respBody, status, err := c.doWithRetry(ctx, c.docsURL("search"), wire)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.decodeError(status, respBody)
	}

	var resp struct {
		Count int64                    `json:"@odata.count"`
		Value []map[string]interface{} `json:"value"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, services.NewExternal(serviceName,
			"failed to decode search response", status, err)
	}

	results := make([]Result, 0, len(resp.Value))
	for _, doc := range resp.Value {
		result := Result{Fields: make(map[string]interface{}, len(doc))}
		for k, v := range doc {
			if k == "@search.score" {
				if score, ok := v.(float64); ok {
					result.Score = score
				}
				continue
			}
			if strings.HasPrefix(k, "@") {
				continue
			}
			result.Fields[k] = v
		}
		results = append(results, result)
	}

	return &Results{Results: results, Count: resp.Count}, nil
}

// IndexResult reports per-document outcomes of an index batch
type IndexResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// IndexDocuments submits a batch of documents with the given action.
// The service responds 207 when some documents fail; the result reports
// per-item counts either way.
func (c *Client) IndexDocuments(ctx context.Context, action string, docs []map[string]interface{}) (*IndexResult, error) {
	if len(docs) == 0 {
		return nil, services.ErrEmptyContent
	}

	batch := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		entry := make(map[string]interface{}, len(doc)+1)
		for k, v := range doc {
			entry[k] = v
		}
		entry["@search.action"] = action
		batch = append(batch, entry)
	}

	respBody, status, err := c.doWithRetry(ctx, c.docsURL("index"), map[string]interface{}{
		"value": batch,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusMultiStatus {
		return nil, c.decodeError(status, respBody)
	}

	var resp struct {
		Value []struct {
			Key          string  `json:"key"`
			Status       bool    `json:"status"`
			StatusCode   int     `json:"statusCode"`
			ErrorMessage *string `json:"errorMessage"`
		} `json:"value"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, services.NewExternal(serviceName,
			"failed to decode index response", status, err)
	}

	result := &IndexResult{}
	for _, item := range resp.Value {
		if item.Status {
			result.Succeeded++
			continue
		}
		result.Failed++
		if item.ErrorMessage != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", item.Key, *item.ErrorMessage))
		}
	}

	return result, nil
}

// DeleteDocument deletes one document by key. The index batch API reports
// success even for unknown keys, so a missing document is not an error here.
func (c *Client) DeleteDocument(ctx context.Context, keyField, key string) (*IndexResult, error) {
	if key == "" {
		return nil, services.ErrInvalidInput
	}
	return c.IndexDocuments(ctx, ActionDelete, []map[string]interface{}{
		{keyField: key},
	})
}

// docsURL builds the docs operation URL for the configured index
func (c *Client) docsURL(operation string) string {
	return fmt.Sprintf("%s/indexes/%s/docs/%s?api-version=%s",
		strings.TrimSuffix(c.config.Endpoint, "/"),
		url.PathEscape(c.config.IndexName),
		operation,
		url.QueryEscape(c.config.APIVersion))
}

// newRequest builds an authorized POST request
func (c *Client) newRequest(ctx context.Context, requestURL string, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, services.NewExternal(serviceName, "failed to acquire bearer token", 0, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	} else {
		httpReq.Header.Set("api-key", c.config.APIKey)
	}

	return httpReq, nil
}

// doWithRetry executes the request, retrying transient failures (network
// errors, 429 and 5xx) with linear backoff.
func (c *Client) doWithRetry(ctx context.Context, requestURL string, payload interface{}) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, services.NewDomainError(services.ErrorTypeInternal,
			"failed to marshal search request", err)
	}

	var lastErr error
	var lastStatus int
	var lastBody []byte

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, services.NewExternal(serviceName, "request cancelled", 0, ctx.Err())
			case <-time.After(defaultRetryDelay * time.Duration(attempt)):
			}
			c.logger.Debug("retrying search request",
				zap.Int("attempt", attempt),
				zap.String("url", requestURL))
		}

		httpReq, err := c.newRequest(ctx, requestURL, body)
		if err != nil {
			return nil, 0, err
		}

		resp, err := c.httpClient.Do(httpReq)
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

// decodeError converts a search error envelope into a domain error
func (c *Client) decodeError(status int, body []byte) error {
	var wire struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
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
