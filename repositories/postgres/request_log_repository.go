package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/repositories"
	"github.com/upb/azure-ai-gateway/services"
	"go.uber.org/zap"
)

// RequestLogRepository implements repositories.RequestLogRepository
type RequestLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRequestLogRepository creates a new request log repository
func NewRequestLogRepository(db *DB, logger *zap.Logger) repositories.RequestLogRepository {
	return &RequestLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new request log entry
func (r *RequestLogRepository) Insert(ctx context.Context, log *models.RequestLog) error {
	query := `
		INSERT INTO request_logs (
			id, request_id, service, operation, model,
			prompt_tokens, completion_tokens, latency_ms, status_code,
			error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.RequestID,
		log.Service,
		log.Operation,
		log.Model,
		log.PromptTokens,
		log.CompletionTokens,
		log.LatencyMs,
		log.StatusCode,
		log.ErrorMessage,
		log.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}

	r.logger.Debug("request log inserted",
		zap.String("id", log.ID.String()),
		zap.String("service", log.Service),
		zap.String("operation", log.Operation))
	return nil
}

// GetByID retrieves a request log entry by ID
func (r *RequestLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestLog, error) {
	query := `
		SELECT id, request_id, service, operation, model,
		       prompt_tokens, completion_tokens, latency_ms, status_code,
		       error_message, created_at
		FROM request_logs
		WHERE id = $1
	`

	log := &models.RequestLog{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&log.ID,
		&log.RequestID,
		&log.Service,
		&log.Operation,
		&log.Model,
		&log.PromptTokens,
		&log.CompletionTokens,
		&log.LatencyMs,
		&log.StatusCode,
		&log.ErrorMessage,
		&log.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrRequestLogNotFound
		}
		return nil, fmt.Errorf("failed to get request log: %w", err)
	}

	return log, nil
}

// List retrieves recent request log entries, newest first
func (r *RequestLogRepository) List(ctx context.Context, limit, offset int) ([]*models.RequestLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, request_id, service, operation, model,
		       prompt_tokens, completion_tokens, latency_ms, status_code,
		       error_message, created_at
		FROM request_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.RequestLog
	for rows.Next() {
		log := &models.RequestLog{}
		if err := rows.Scan(
			&log.ID,
			&log.RequestID,
			&log.Service,
			&log.Operation,
			&log.Model,
			&log.PromptTokens,
			&log.CompletionTokens,
			&log.LatencyMs,
			&log.StatusCode,
			&log.ErrorMessage,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate request logs: %w", err)
	}

	return logs, nil
}
