package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/azure-ai-gateway/models"
)

// RequestLogRepository persists gateway request log entries
type RequestLogRepository interface {
	// Insert stores a new request log entry
	Insert(ctx context.Context, log *models.RequestLog) error

	// GetByID retrieves a request log entry by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.RequestLog, error)

	// List retrieves recent request log entries, newest first
	List(ctx context.Context, limit, offset int) ([]*models.RequestLog, error)
}
