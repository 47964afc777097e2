package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPasswordResetEmail delivers a password-reset link.
	TaskPasswordResetEmail = "auth:password_reset_email"
	// TaskActivityPrune removes activity_log rows past the retention window.
	TaskActivityPrune = "activity:prune"
)

// PasswordResetPayload describes one password-reset email.
type PasswordResetPayload struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewPasswordResetTask constructs an Asynq task.
func NewPasswordResetTask(payload PasswordResetPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPasswordResetEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// ActivityPrunePayload carries the retention applied by one prune run.
type ActivityPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewActivityPruneTask constructs the scheduled prune task.
func NewActivityPruneTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ActivityPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivityPrune, data, asynq.Queue(QueueDefault)), nil
}
