package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/retrouvio/retrouvio/internal/jobs"
	"github.com/retrouvio/retrouvio/internal/notify"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NotificationsPurgeJob deletes notifications whose expiry has passed.
type NotificationsPurgeJob struct {
	Notifications *notify.Service
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
}

// NewNotificationsPurgeJob wires dependencies for the purge handler.
func NewNotificationsPurgeJob(notifications *notify.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationsPurgeJob {
	return &NotificationsPurgeJob{
		Notifications: notifications,
		Logger:        logger,
		Metrics:       metrics,
	}
}

// Handle processes notifications purge tasks.
func (j *NotificationsPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Notifications == nil {
		return errors.New("notifications purge: handler not configured")
	}
	var payload NotificationsPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	tracker := j.metrics().Track(TaskNotificationsPurge)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := time.Now()

	purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	purged, err := j.Notifications.PurgeExpired(purgeCtx)
	if err != nil {
		resultErr = err
		logger.Error("purge expired notifications", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed notifications purge", slog.Int64("purged", purged), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *NotificationsPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNotificationsPurge))
	}
	return slog.Default().With(slog.String("job", TaskNotificationsPurge))
}

func (j *NotificationsPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
