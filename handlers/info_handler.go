package handlers

import (
	"net/http"

	"github.com/upb/azure-ai-gateway/config"
	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// InfoHandler reports the gateway's effective configuration. Secrets are
// never echoed; only their presence is reported.
type InfoHandler struct {
	cfg     *config.Config
	version string
	logger  *zap.Logger
}

// NewInfoHandler creates a new InfoHandler
func NewInfoHandler(cfg *config.Config, version string, logger *zap.Logger) *InfoHandler {
	return &InfoHandler{
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
}

// HandleInfo handles GET /api/info
func (h *InfoHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]interface{}{
		"version":     h.version,
		"environment": h.cfg.Environment,
		"azureOpenAI": map[string]interface{}{
			"endpoint":            h.cfg.AzureOpenAI.Endpoint,
			"apiVersion":          h.cfg.AzureOpenAI.APIVersion,
			"chatDeployment":      h.cfg.AzureOpenAI.ChatDeployment,
			"embeddingDeployment": h.cfg.AzureOpenAI.EmbeddingDeployment,
			"keyConfigured":       h.cfg.AzureOpenAI.APIKey != "",
		},
		"search": map[string]interface{}{
			"endpoint":      h.cfg.Search.Endpoint,
			"indexName":     h.cfg.Search.IndexName,
			"apiVersion":    h.cfg.Search.APIVersion,
			"keyConfigured": h.cfg.Search.APIKey != "",
		},
		"storage": map[string]interface{}{
			"accountName":   h.cfg.Storage.AccountName,
			"container":     h.cfg.Storage.Container,
			"keyConfigured": h.cfg.Storage.AccountKey != "",
		},
		"appInsights": map[string]interface{}{
			"enabled": h.cfg.AppInsights.InstrumentationKey != "",
		},
		"managedIdentity": h.cfg.UseManagedIdentity,
		"requestLogging":  h.cfg.Database != nil,
	})
}
