package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge deletes expired session rows.
	TaskSessionPurge = "session:purge"
	// TaskLowStockAlert reports products at or below their alert level.
	TaskLowStockAlert = "stock:low-alert"
	// TaskIdempotencyCleanup drops checkout keys past retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewSessionPurgeTask constructs the hourly session purge task.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil, asynq.Queue(QueueDefault))
}

// NewLowStockAlertTask constructs a low stock scan task.
func NewLowStockAlertTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockAlert, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask constructs a cleanup task for keys older than retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
