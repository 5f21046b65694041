package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/upb/azure-ai-gateway/config"
	"github.com/upb/azure-ai-gateway/handlers"
	"github.com/upb/azure-ai-gateway/internal/azureauth"
	"github.com/upb/azure-ai-gateway/middleware"
	"github.com/upb/azure-ai-gateway/repositories"
	"github.com/upb/azure-ai-gateway/repositories/postgres"
	"github.com/upb/azure-ai-gateway/services/audit"
	"github.com/upb/azure-ai-gateway/services/azureopenai"
	"github.com/upb/azure-ai-gateway/services/blob"
	"github.com/upb/azure-ai-gateway/services/rag"
	"github.com/upb/azure-ai-gateway/services/search"
	"github.com/upb/azure-ai-gateway/services/telemetry"
	"github.com/upb/azure-ai-gateway/services/vectorsearch"
	"go.uber.org/zap"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

// closeTimeout bounds telemetry flush and audit drain during shutdown
const closeTimeout = 5 * time.Second

// Dependencies holds all application dependencies. It is the central wiring
// point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB // nil when no database is configured

	// Services
	OpenAI       *azureopenai.Adapter
	Search       *search.Client
	Blob         *blob.Service
	Telemetry    *telemetry.Service
	RAG          *rag.Service
	VectorSearch *vectorsearch.Service
	Recorder     *audit.Recorder
	RequestLogs  repositories.RequestLogRepository // nil when no database

	// Handlers
	OpenAIHandler       *handlers.OpenAIHandler
	SearchHandler       *handlers.SearchHandler
	BlobHandler         *handlers.BlobHandler
	TelemetryHandler    *handlers.TelemetryHandler
	RAGHandler          *handlers.RAGHandler
	VectorSearchHandler *handlers.VectorSearchHandler
	RequestsHandler     *handlers.RequestsHandler
	HealthHandler       *handlers.HealthHandler
	InfoHandler         *handlers.InfoHandler

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware // nil when no JWT secret
	RateLimiter    *middleware.RateLimiter
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	cred, err := deps.initCredential(cfg)
	if err != nil {
		return nil, err
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(ctx, cfg, cred); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHandlers(cfg)
	deps.initMiddleware(cfg)

	logger.Info("all dependencies initialized",
		zap.Bool("managed_identity", cfg.UseManagedIdentity),
		zap.Bool("request_logging", deps.DB != nil),
		zap.Bool("telemetry", deps.Telemetry.Enabled()))
	return deps, nil
}

// initCredential builds the shared Azure credential when managed identity
// auth is enabled. With api-key auth no credential is needed.
func (d *Dependencies) initCredential(cfg *config.Config) (azcore.TokenCredential, error) {
	if !cfg.UseManagedIdentity {
		return nil, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure credential: %w", err)
	}

	d.Logger.Info("using managed identity for azure services")
	return cred, nil
}

// initDatabase connects to PostgreSQL when configured. The gateway runs
// without request logging otherwise.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Info("no database configured, request logging disabled")
		return nil
	}

	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.DB = db
	d.RequestLogs = postgres.NewRequestLogRepository(db, d.Logger)
	d.Logger.Info("database connection established")
	return nil
}

// initServices wires the Azure-facing services and the pipelines on top
func (d *Dependencies) initServices(ctx context.Context, cfg *config.Config, cred azcore.TokenCredential) error {
	var openaiTokens azureopenai.TokenProvider
	var searchTokens search.TokenProvider
	if cred != nil {
		openaiTokens = azureauth.NewTokenProvider(cred, azureauth.ScopeCognitiveServices)
		searchTokens = azureauth.NewTokenProvider(cred, azureauth.ScopeSearch)
	}

	d.OpenAI = azureopenai.NewAdapter(cfg.AzureOpenAI, openaiTokens, d.Logger)
	d.Search = search.NewClient(cfg.Search, searchTokens, d.Logger)

	blobSvc, err := blob.NewService(cfg.Storage, cred, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create blob service: %w", err)
	}
	if err := blobSvc.EnsureContainer(ctx); err != nil {
		return fmt.Errorf("failed to ensure container: %w", err)
	}
	d.Blob = blobSvc

	d.Telemetry = telemetry.New(cfg.AppInsights.InstrumentationKey, cfg.AppInsights.RoleName, d.Logger)
	d.Recorder = audit.NewRecorder(d.RequestLogs, d.Logger)

	d.RAG = rag.NewService(d.OpenAI, d.OpenAI, d.Search, cfg.RAG, d.Logger)
	d.VectorSearch = vectorsearch.NewService(d.OpenAI, d.Search, cfg.RAG.VectorField, cfg.RAG.TopK, d.Logger)
	return nil
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	d.OpenAIHandler = handlers.NewOpenAIHandler(d.OpenAI, d.Recorder, d.Logger)
	d.SearchHandler = handlers.NewSearchHandler(d.Search, d.Recorder, d.Logger)
	d.BlobHandler = handlers.NewBlobHandler(d.Blob, d.Logger)
	d.TelemetryHandler = handlers.NewTelemetryHandler(d.Telemetry, d.Logger)
	d.RAGHandler = handlers.NewRAGHandler(d.RAG, d.Recorder, d.Logger)
	d.VectorSearchHandler = handlers.NewVectorSearchHandler(d.VectorSearch, d.Recorder, d.Logger)
	d.RequestsHandler = handlers.NewRequestsHandler(d.RequestLogs, d.Logger)

	var dbCheck handlers.DBChecker
	if d.DB != nil {
		dbCheck = d.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(Version, dbCheck, d.Logger)
	d.InfoHandler = handlers.NewInfoHandler(cfg, Version, d.Logger)
}

func (d *Dependencies) initMiddleware(cfg *config.Config) {
	if cfg.Auth.JWTSecret != "" {
		d.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, d.Logger)
		d.Logger.Info("bearer token authentication enabled")
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		d.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, d.Logger)
	}
}

// Close releases resources in reverse dependency order
func (d *Dependencies) Close() {
	if d.Recorder != nil {
		d.Recorder.Drain(closeTimeout)
	}
	if d.Telemetry != nil {
		d.Telemetry.Close(closeTimeout)
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
	d.Logger.Info("dependencies closed")
}
