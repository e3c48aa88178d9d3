package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/kasirku/kasirku/internal/jobs"
)

// SessionPurger deletes expired sessions. auth.Service satisfies it.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// SessionPurgeJob removes expired session rows from postgres.
type SessionPurgeJob struct {
	Purger  SessionPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionPurgeJob initialises the purge handler.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionPurgeJob{Purger: purger, Logger: logger, Metrics: metrics}
}

// Handle executes one purge.
func (j *SessionPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Purger == nil {
		return errors.New("session purge: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSessionPurge)
	n, err := j.Purger.PurgeExpiredSessions(ctx)
	if err != nil {
		j.Logger.Error("session purge failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddRemoved(TaskSessionPurge, n)
	j.Logger.Info("expired sessions purged", slog.Int64("removed", n))
	return tracker.End(nil)
}
