package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotificationsPurge removes notifications past their expiry.
	TaskNotificationsPurge = "notifications:purge"
)

// NotificationsPurgePayload configures a purge run. Reason is carried into the
// job logs so scheduled and manual runs can be told apart.
type NotificationsPurgePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewNotificationsPurgeTask constructs an Asynq task for a purge run.
func NewNotificationsPurgeTask(payload NotificationsPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationsPurge, data), nil
}
