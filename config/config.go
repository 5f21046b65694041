package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	AzureOpenAI   AzureOpenAIConfig
	Search        SearchConfig
	Storage       StorageConfig
	AppInsights   AppInsightsConfig
	Database      *DatabaseConfig // Optional: request audit log store. When nil, auditing is disabled.
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	RAG           RAGConfig
	Observability ObservabilityConfig
	Environment   string

	// UseManagedIdentity switches every Azure client from api-key auth to
	// DefaultAzureCredential bearer tokens.
	UseManagedIdentity bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AzureOpenAIConfig holds the Azure OpenAI resource configuration
type AzureOpenAIConfig struct {
	Endpoint            string // e.g. https://my-resource.openai.azure.com
	APIKey              string
	APIVersion          string
	ChatDeployment      string
	EmbeddingDeployment string
	Timeout             time.Duration
	MaxRetries          int
}

// SearchConfig holds the Azure Cognitive Search resource configuration
type SearchConfig struct {
	Endpoint   string // e.g. https://my-resource.search.windows.net
	APIKey     string
	IndexName  string
	APIVersion string
	Timeout    time.Duration
	MaxRetries int
}

// StorageConfig holds the Azure Blob Storage configuration.
// Endpoint overrides the default https://<account>.blob.core.windows.net
// (useful against Azurite).
type StorageConfig struct {
	AccountName string
	AccountKey  string
	Container   string
	Endpoint    string
}

// AppInsightsConfig holds the Application Insights configuration.
// Telemetry is disabled when the instrumentation key is empty.
type AppInsightsConfig struct {
	InstrumentationKey string
	RoleName           string
}

// DatabaseConfig holds PostgreSQL configuration for the request audit log
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds gateway authentication configuration.
// When JWTSecret is empty the /api routes are open.
type AuthConfig struct {
	JWTSecret string
}

// RateLimitConfig holds per-client request rate limiting configuration.
// RequestsPerSecond <= 0 disables the limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// RAGConfig holds retrieval pipeline tuning knobs
type RAGConfig struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	VectorField  string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		AzureOpenAI: AzureOpenAIConfig{
			Endpoint:            getEnv("AZURE_OPENAI_ENDPOINT", ""),
			APIKey:              getEnv("AZURE_OPENAI_API_KEY", ""),
			APIVersion:          getEnv("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
			ChatDeployment:      getEnv("AZURE_OPENAI_CHAT_DEPLOYMENT", "gpt-4o"),
			EmbeddingDeployment: getEnv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-ada-002"),
			Timeout:             getEnvAsDuration("AZURE_OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries:          getEnvAsInt("AZURE_OPENAI_MAX_RETRIES", 3),
		},
		Search: SearchConfig{
			Endpoint:   getEnv("AZURE_SEARCH_ENDPOINT", ""),
			APIKey:     getEnv("AZURE_SEARCH_API_KEY", ""),
			IndexName:  getEnv("AZURE_SEARCH_INDEX", "documents"),
			APIVersion: getEnv("AZURE_SEARCH_API_VERSION", "2023-11-01"),
			Timeout:    getEnvAsDuration("AZURE_SEARCH_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvAsInt("AZURE_SEARCH_MAX_RETRIES", 3),
		},
		Storage: StorageConfig{
			AccountName: getEnv("AZURE_STORAGE_ACCOUNT", ""),
			AccountKey:  getEnv("AZURE_STORAGE_KEY", ""),
			Container:   getEnv("AZURE_STORAGE_CONTAINER", "documents"),
			Endpoint:    getEnv("AZURE_STORAGE_ENDPOINT", ""),
		},
		AppInsights: AppInsightsConfig{
			InstrumentationKey: getEnv("APPINSIGHTS_INSTRUMENTATION_KEY", ""),
			RoleName:           getEnv("APPINSIGHTS_ROLE_NAME", "azure-ai-gateway"),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("GATEWAY_JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 0),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		RAG: RAGConfig{
			ChunkSize:    getEnvAsInt("RAG_CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("RAG_CHUNK_OVERLAP", 200),
			TopK:         getEnvAsInt("RAG_TOP_K", 5),
			VectorField:  getEnv("RAG_VECTOR_FIELD", "contentVector"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		UseManagedIdentity: getEnvAsBool("USE_MANAGED_IDENTITY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.AzureOpenAI.Endpoint == "" {
		return fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}
	if c.Search.Endpoint == "" {
		return fmt.Errorf("AZURE_SEARCH_ENDPOINT is required")
	}
	if c.Storage.AccountName == "" {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required")
	}

	// Keys are only required when managed identity is off
	if !c.UseManagedIdentity {
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("AZURE_OPENAI_API_KEY is required unless USE_MANAGED_IDENTITY=true")
		}
		if c.Search.APIKey == "" {
			return fmt.Errorf("AZURE_SEARCH_API_KEY is required unless USE_MANAGED_IDENTITY=true")
		}
		if c.Storage.AccountKey == "" {
			return fmt.Errorf("AZURE_STORAGE_KEY is required unless USE_MANAGED_IDENTITY=true")
		}
	}

	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("RAG_CHUNK_SIZE must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("RAG_CHUNK_OVERLAP must be in [0, RAG_CHUNK_SIZE)")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// BlobServiceURL returns the blob service endpoint, deriving it from the
// account name when no explicit endpoint override is set.
func (c *StorageConfig) BlobServiceURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", c.AccountName)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadDatabaseConfig loads the optional audit DB config from DATABASE_URL.
// Returns nil when not set (request auditing disabled).
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
