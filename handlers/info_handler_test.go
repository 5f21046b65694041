package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/azure-ai-gateway/config"
	"go.uber.org/zap"
)

func TestHandleInfoNeverEchoesSecrets(t *testing.T) {
	cfg := &config.Config{
		Environment: "production",
		AzureOpenAI: config.AzureOpenAIConfig{
			Endpoint:       "https://example.openai.azure.com",
			APIKey:         "super-secret-openai-key",
			APIVersion:     "2024-06-01",
			ChatDeployment: "gpt-4o",
		},
		Search: config.SearchConfig{
			Endpoint:  "https://example.search.windows.net",
			APIKey:    "super-secret-search-key",
			IndexName: "documents",
		},
		Storage: config.StorageConfig{
			AccountName: "exampleacct",
			AccountKey:  "super-secret-storage-key",
			Container:   "documents",
		},
	}
	h := NewInfoHandler(cfg, "1.0.0", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
	rec := httptest.NewRecorder()
	h.HandleInfo(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "super-secret-openai-key")
	assert.NotContains(t, body, "super-secret-search-key")
	assert.NotContains(t, body, "super-secret-storage-key")

	assert.Contains(t, body, `"keyConfigured":true`)
	assert.Contains(t, body, "https://example.openai.azure.com")
	assert.Contains(t, body, `"indexName":"documents"`)
	assert.Contains(t, body, `"requestLogging":false`)
}
