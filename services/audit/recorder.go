package audit

import (
	"context"
	"sync"
	"time"

	"github.com/upb/azure-ai-gateway/models"
	"github.com/upb/azure-ai-gateway/repositories"
	"go.uber.org/zap"
)

// insertTimeout bounds each background insert
const insertTimeout = 5 * time.Second

// Recorder writes request logs in the background. Inserts never block or
// fail the request being recorded; failures are logged and dropped.
type Recorder struct {
	repo   repositories.RequestLogRepository // nil disables recording
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder. A nil repository disables recording.
func NewRecorder(repo repositories.RequestLogRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Enabled reports whether request logs are being persisted
func (r *Recorder) Enabled() bool {
	return r.repo != nil
}

// Record persists the entry asynchronously
func (r *Recorder) Record(log *models.RequestLog) {
	if r.repo == nil || log == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()

		if err := r.repo.Insert(ctx, log); err != nil {
			r.logger.Warn("failed to persist request log",
				zap.String("service", log.Service),
				zap.String("operation", log.Operation),
				zap.Error(err))
		}
	}()
}

// Drain waits for in-flight inserts to finish, up to the given timeout
func (r *Recorder) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		r.logger.Warn("request log drain timed out")
	}
}
