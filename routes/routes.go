package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/azure-ai-gateway/app"
	gwmiddleware "github.com/upb/azure-ai-gateway/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Limit)
	}
	r.Use(gwmiddleware.RequestTelemetry(deps.Telemetry))

	// Health endpoints stay unauthenticated
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReady)

	r.Route("/api", func(r chi.Router) {
		if deps.AuthMiddleware != nil {
			r.Use(deps.AuthMiddleware.RequireAuth)
		}

		r.Get("/info", deps.InfoHandler.HandleInfo)

		r.Route("/AzureOpenAI", func(r chi.Router) {
			r.Get("/test", deps.OpenAIHandler.HandleTest)
			r.Post("/chat", deps.OpenAIHandler.HandleChat)
			r.Post("/chat-stream", deps.OpenAIHandler.HandleChatStream)
			r.Post("/embeddings", deps.OpenAIHandler.HandleEmbeddings)
		})

		r.Route("/CognitiveSearch", func(r chi.Router) {
			r.Post("/search", deps.SearchHandler.HandleSearch)
			r.Post("/index", deps.SearchHandler.HandleIndexDocument)
			r.Post("/index-batch", deps.SearchHandler.HandleIndexBatch)
			r.Delete("/document/{key}", deps.SearchHandler.HandleDeleteDocument)
		})

		r.Route("/BlobStorage", func(r chi.Router) {
			r.Post("/upload", deps.BlobHandler.HandleUpload)
			r.Post("/upload-text", deps.BlobHandler.HandleUploadText)
			r.Get("/download/{name}", deps.BlobHandler.HandleDownload)
			r.Get("/list", deps.BlobHandler.HandleList)
			r.Post("/sas/{name}", deps.BlobHandler.HandleGenerateSAS)
			r.Delete("/{name}", deps.BlobHandler.HandleDelete)
		})

		r.Route("/Telemetry", func(r chi.Router) {
			r.Post("/event", deps.TelemetryHandler.HandleTrackEvent)
			r.Post("/trace", deps.TelemetryHandler.HandleTrackTrace)
			r.Post("/metric", deps.TelemetryHandler.HandleTrackMetric)
		})

		r.Route("/Rag", func(r chi.Router) {
			r.Post("/query", deps.RAGHandler.HandleQuery)
			r.Post("/ingest", deps.RAGHandler.HandleIngest)
			r.Post("/ingest-batch", deps.RAGHandler.HandleIngestBatch)
		})

		r.Route("/VectorSearch", func(r chi.Router) {
			r.Post("/vector-search", deps.VectorSearchHandler.HandleVectorSearch)
			r.Post("/hybrid-search", deps.VectorSearchHandler.HandleHybridSearch)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", deps.RequestsHandler.HandleList)
			r.Get("/{id}", deps.RequestsHandler.HandleGet)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
