package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseEnv returns the minimal environment for a valid config
func baseEnv() map[string]string {
	return map[string]string{
		"AZURE_OPENAI_ENDPOINT": "https://aoai.openai.azure.com",
		"AZURE_OPENAI_API_KEY":  "openai-key",
		"AZURE_SEARCH_ENDPOINT": "https://search.search.windows.net",
		"AZURE_SEARCH_API_KEY":  "search-key",
		"AZURE_STORAGE_ACCOUNT": "devstore",
		"AZURE_STORAGE_KEY":     "storage-key",
	}
}

func setEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	for k, v := range envVars {
		t.Setenv(k, v)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "default configuration",
			envVars: baseEnv(),
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "2024-02-15-preview", cfg.AzureOpenAI.APIVersion)
				assert.Equal(t, "gpt-4o", cfg.AzureOpenAI.ChatDeployment)
				assert.Equal(t, "documents", cfg.Search.IndexName)
				assert.Equal(t, "documents", cfg.Storage.Container)
				assert.Equal(t, 1000, cfg.RAG.ChunkSize)
				assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
				assert.Equal(t, 5, cfg.RAG.TopK)
				assert.Nil(t, cfg.Database)
				assert.False(t, cfg.UseManagedIdentity)
			},
		},
		{
			name: "custom server and database configuration",
			envVars: func() map[string]string {
				env := baseEnv()
				env["ENVIRONMENT"] = "production"
				env["SERVER_PORT"] = "9000"
				env["DATABASE_URL"] = "postgres://gw:pw@db:5432/gateway"
				env["DB_MAX_OPEN_CONNS"] = "20"
				env["AZURE_OPENAI_TIMEOUT"] = "90s"
				return env
			}(),
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				require.NotNil(t, cfg.Database)
				assert.Equal(t, "postgres://gw:pw@db:5432/gateway", cfg.Database.ConnectionString)
				assert.Equal(t, 20, cfg.Database.MaxOpenConns)
				assert.Equal(t, 90*time.Second, cfg.AzureOpenAI.Timeout)
			},
		},
		{
			name: "managed identity skips key validation",
			envVars: map[string]string{
				"AZURE_OPENAI_ENDPOINT": "https://aoai.openai.azure.com",
				"AZURE_SEARCH_ENDPOINT": "https://search.search.windows.net",
				"AZURE_STORAGE_ACCOUNT": "devstore",
				"USE_MANAGED_IDENTITY":  "true",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.UseManagedIdentity)
				assert.Empty(t, cfg.AzureOpenAI.APIKey)
			},
		},
		{
			name: "missing openai endpoint",
			envVars: func() map[string]string {
				env := baseEnv()
				delete(env, "AZURE_OPENAI_ENDPOINT")
				return env
			}(),
			wantErr: true,
		},
		{
			name: "missing openai key without managed identity",
			envVars: func() map[string]string {
				env := baseEnv()
				delete(env, "AZURE_OPENAI_API_KEY")
				return env
			}(),
			wantErr: true,
		},
		{
			name: "chunk overlap must be smaller than chunk size",
			envVars: func() map[string]string {
				env := baseEnv()
				env["RAG_CHUNK_SIZE"] = "100"
				env["RAG_CHUNK_OVERLAP"] = "100"
				return env
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// empty values read as unset, so blank out the base vars first
			for k := range baseEnv() {
				t.Setenv(k, "")
			}
			setEnv(t, tt.envVars)

			cfg, err := New()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestBlobServiceURL(t *testing.T) {
	cfg := StorageConfig{AccountName: "devstore"}
	assert.Equal(t, "https://devstore.blob.core.windows.net", cfg.BlobServiceURL())

	cfg.Endpoint = "http://127.0.0.1:10000/devstore"
	assert.Equal(t, "http://127.0.0.1:10000/devstore", cfg.BlobServiceURL())
}

func TestServerAddress(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}
