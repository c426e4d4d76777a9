package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypePendingReminder = "orders:pending_reminder"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the asynq queue priority map used by the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type PendingReminderPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

func NewPendingReminderTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(PendingReminderPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	// a missed reminder is superseded by the next tick
	return asynq.NewTask(TaskTypePendingReminder, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// DecodePendingReminder reads the payload of a reminder task.
func DecodePendingReminder(t *asynq.Task) (PendingReminderPayload, error) {
	var payload PendingReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return PendingReminderPayload{}, err
	}
	return payload, nil
}
