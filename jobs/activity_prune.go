package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agristock/agristock/internal/jobs"
	"github.com/agristock/agristock/internal/shared"
)

// DefaultActivityRetention keeps roughly one quarter of activity history.
const DefaultActivityRetention = 90 * 24 * time.Hour

// ActivityPruneJob deletes activity_log rows older than the payload retention.
type ActivityPruneJob struct {
	DB      shared.Execer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewActivityPruneJob wires dependencies for the prune handler.
func NewActivityPruneJob(db shared.Execer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ActivityPruneJob {
	return &ActivityPruneJob{DB: db, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes TaskActivityPrune tasks.
func (j *ActivityPruneJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	var payload ActivityPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("activity prune: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultActivityRetention
	}

	tracker := j.Metrics.Track(TaskActivityPrune)
	defer func() {
		err = tracker.End(err)
	}()

	cutoff := j.clock().Add(-payload.Retention)
	tag, err := j.DB.Exec(ctx, `DELETE FROM activity_log WHERE event_time < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("activity prune: %w", err)
	}
	j.Metrics.ObservePruned(tag.RowsAffected())
	if j.Logger != nil {
		j.Logger.Info("activity log pruned", slog.Int64("rows", tag.RowsAffected()), slog.Time("cutoff", cutoff))
	}
	return nil
}
