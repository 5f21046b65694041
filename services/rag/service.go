package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/upb/azure-ai-gateway/config"
	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/services"
	"github.com/upb/azure-ai-gateway/services/azureopenai"
	"github.com/upb/azure-ai-gateway/services/search"
	"go.uber.org/zap"
)

// snippetLength caps source snippets returned with an answer
const snippetLength = 240

const systemPrompt = "You are a helpful assistant. Answer the question using only " +
	"the numbered sources below. Cite sources as [n]. If the sources do not " +
	"contain the answer, say so instead of guessing."

// Embedder produces embedding vectors for a batch of texts
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel produces chat completions
type ChatModel interface {
	ChatCompletion(ctx context.Context, req *azureopenai.ChatRequest) (*azureopenai.ChatResult, error)
}

// Index is the slice of the search client the pipeline needs
type Index interface {
	Search(ctx context.Context, query *search.Query) (*search.Results, error)
	IndexDocuments(ctx context.Context, action string, docs []map[string]interface{}) (*search.IndexResult, error)
}

// Service orchestrates the RAG pipeline: embed, retrieve, prompt, complete.
// It is a fixed linear sequence of Azure calls with no retry, caching, or
// ranking of its own.
type Service struct {
	embedder    Embedder
	chat        ChatModel
	index       Index
	splitter    textsplitter.RecursiveCharacter
	topK        int
	vectorField string
	logger      *zap.Logger
}

// NewService creates the RAG service
func NewService(embedder Embedder, chat ChatModel, index Index, cfg config.RAGConfig, logger *zap.Logger) *Service {
	return &Service{
		embedder: embedder,
		chat:     chat,
		index:    index,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		topK:        cfg.TopK,
		vectorField: cfg.VectorField,
		logger:      logger,
	}
}

// Source is one retrieved document cited by an answer
type Source struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Answer is the result of a RAG query
type Answer struct {
	Answer  string            `json:"answer"`
	Sources []Source          `json:"sources"`
	Model   string            `json:"model,omitempty"`
	Usage   azureopenai.Usage `json:"usage"`
}

// Query answers a question from the indexed documents
func (s *Service) Query(ctx context.Context, question string, top int) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, services.ErrInvalidInput
	}
	if top <= 0 {
		top = s.topK
	}

	vectors, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, err
	}

	results, err := s.index.Search(ctx, &search.Query{
		Vector:      vectors[0],
		VectorField: s.vectorField,
		Top:         top,
	})
	if err != nil {
		return nil, err
	}

	if len(results.Results) == 0 {
		s.logger.Debug("rag query retrieved no documents")
		return &Answer{
			Answer:  "No relevant documents were found in the knowledge base.",
			Sources: []Source{},
		}, nil
	}

	sources := make([]Source, 0, len(results.Results))
	var contextBlock strings.Builder
	for i, result := range results.Results {
		content := stringField(result.Fields, "content")
		title := stringField(result.Fields, "title")

		fmt.Fprintf(&contextBlock, "[%d] %s\n%s\n\n", i+1, title, content)

		sources = append(sources, Source{
			ID:      stringField(result.Fields, "id"),
			Title:   title,
			Score:   result.Score,
			Snippet: snippet(content),
		})
	}

	chatResult, err := s.chat.ChatCompletion(ctx, &azureopenai.ChatRequest{
		Messages: []azureopenai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Sources:\n%s\nQuestion: %s", contextBlock.String(), question)},
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rag query answered",
		zap.Int("sources", len(sources)),
		zap.Int("total_tokens", chatResult.Usage.TotalTokens))

	return &Answer{
		Answer:  chatResult.Content,
		Sources: sources,
		Model:   chatResult.Model,
		Usage:   chatResult.Usage,
	}, nil
}

// IngestResult reports the outcome of ingesting one document
type IngestResult struct {
	DocumentID   string `json:"documentId"`
	Chunks       int    `json:"chunks"`
	ChunksFailed int    `json:"chunksFailed,omitempty"`
}

// Ingest chunks a document, embeds every chunk, and uploads the chunks with
// their vectors to the search index.
func (s *Service) Ingest(ctx context.Context, doc models.Document) (*IngestResult, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, services.ErrEmptyContent
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	docID := sanitizeKey(doc.ID)

	chunks, err := s.splitter.SplitText(doc.Content)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"failed to split document", err)
	}
	if len(chunks) == 0 {
		return nil, services.ErrEmptyContent
	}

	embedding, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, err
	}

	searchDocs := make([]map[string]interface{}, 0, len(chunks))
	for i, chunk := range chunks {
		entry := models.DocumentChunk{
			ID:        fmt.Sprintf("%s-%04d", docID, i),
			ParentID:  docID,
			Title:     doc.Title,
			Content:   chunk,
			Ordinal:   i,
			SourceURL: doc.SourceURL,
			Vector:    embedding[i],
		}
		searchDocs = append(searchDocs, entry.SearchFields())
	}

	indexResult, err := s.index.IndexDocuments(ctx, search.ActionMergeOrUpload, searchDocs)
	if err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		zap.String("document_id", docID),
		zap.Int("chunks", indexResult.Succeeded),
		zap.Int("chunks_failed", indexResult.Failed))

	return &IngestResult{
		DocumentID:   docID,
		Chunks:       indexResult.Succeeded,
		ChunksFailed: indexResult.Failed,
	}, nil
}

// BatchResult reports per-item outcomes of a batch ingest
type BatchResult struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []IngestResult `json:"results"`
	Errors    []string       `json:"errors,omitempty"`
}

// IngestBatch ingests each document independently; one bad document does not
// abort the rest.
func (s *Service) IngestBatch(ctx context.Context, docs []models.Document) (*BatchResult, error) {
	if len(docs) == 0 {
		return nil, services.ErrEmptyContent
	}

	batch := &BatchResult{}
	for i, doc := range docs {
		result, err := s.Ingest(ctx, doc)
		if err != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, fmt.Sprintf("document %d: %v", i, err))
			continue
		}
		batch.Succeeded++
		batch.Results = append(batch.Results, *result)
	}

	return batch, nil
}

// stringField extracts a string field from a search result document
func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// snippet truncates content for the source citation list
func snippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= snippetLength {
		return string(runes)
	}
	return string(runes[:snippetLength]) + "…"
}

// sanitizeKey makes an ID safe for use as a search document key, which only
// allows letters, digits, underscore, dash and equals.
func sanitizeKey(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '-' || r == '=':
			return r
		default:
			return '-'
		}
	}, id)
}
