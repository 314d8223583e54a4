package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskFollowupSweep = "followup.sweep"

const TaskFollowupAutoCreate = "followup.autocreate"

const TaskFollowupCleanup = "followup.cleanup"

// FollowupJobPayload is shared by all three follow-up jobs.
type FollowupJobPayload struct {
	TriggeredBy string    `json:"triggeredBy"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

func NewFollowupSweepTask(payload FollowupJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupSweep, data), nil
}

func NewFollowupAutoCreateTask(payload FollowupJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupAutoCreate, data), nil
}

func NewFollowupCleanupTask(payload FollowupJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupCleanup, data), nil
}

func ParseFollowupJobPayload(task *asynq.Task) (FollowupJobPayload, error) {
	var payload FollowupJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowupJobPayload{}, err
	}
	return payload, nil
}
