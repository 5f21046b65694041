package vectorsearch

import (
	"context"
	"strings"

	"github.com/upb/azure-ai-gateway/services"
	"github.com/upb/azure-ai-gateway/services/search"
	"go.uber.org/zap"
)

// Embedder produces embedding vectors for a batch of texts
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the slice of the search client this service needs
type Index interface {
	Search(ctx context.Context, query *search.Query) (*search.Results, error)
}

// Service turns free-text queries into vector and hybrid searches by
// embedding the query before handing it to the index.
type Service struct {
	embedder    Embedder
	index       Index
	vectorField string
	defaultTop  int
	logger      *zap.Logger
}

// NewService creates the vector search service
func NewService(embedder Embedder, index Index, vectorField string, defaultTop int, logger *zap.Logger) *Service {
	return &Service{
		embedder:    embedder,
		index:       index,
		vectorField: vectorField,
		defaultTop:  defaultTop,
		logger:      logger,
	}
}

// VectorSearch embeds the query and runs a pure vector similarity search
func (s *Service) VectorSearch(ctx context.Context, query string, top int, filter string) (*search.Results, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.index.Search(ctx, &search.Query{
		Vector:      vector,
		VectorField: s.vectorField,
		Top:         s.top(top),
		Filter:      filter,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("vector search completed",
		zap.Int("results", len(results.Results)))
	return results, nil
}

// HybridSearch embeds the query and runs it as text and vector at once,
// letting the index fuse both rankings.
func (s *Service) HybridSearch(ctx context.Context, query string, top int, filter string) (*search.Results, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.index.Search(ctx, &search.Query{
		Text:        query,
		Vector:      vector,
		VectorField: s.vectorField,
		Top:         s.top(top),
		Filter:      filter,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("hybrid search completed",
		zap.Int("results", len(results.Results)))
	return results, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.ErrInvalidInput
	}

	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *Service) top(top int) int {
	if top <= 0 {
		return s.defaultTop
	}
	return top
}
