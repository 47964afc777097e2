package shared

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Activity event types written to activity_log.
const (
	EventUserLogin     = "user_login"
	EventUserSignup    = "user_signup"
	EventBatchCreated  = "batch_created"
	EventBatchDeleted  = "batch_deleted"
	EventPasswordReset = "password_reset_requested"
	EventRoleChanged   = "user_role_changed"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ActivityEvent is one row of the activity_log audit trail.
type ActivityEvent struct {
	EventType string
	EntityID  string
	UserID    int64
	At        time.Time
}

// ActivityLogger writes records into activity_log.
type ActivityLogger struct {
	db  Execer
	now func() time.Time
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(db Execer) *ActivityLogger {
	return &ActivityLogger{db: db, now: time.Now}
}

// Record persists the event using the logger's own connection.
func (l *ActivityLogger) Record(ctx context.Context, event ActivityEvent) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	return l.RecordWith(ctx, l.db, event)
}

// RecordWith persists the event through db, so callers can join an open transaction.
func (l *ActivityLogger) RecordWith(ctx context.Context, db Execer, event ActivityEvent) error {
	if db == nil {
		return errors.New("activity logger: no database handle")
	}
	if strings.TrimSpace(event.EventType) == "" {
		return errors.New("activity event requires an event type")
	}
	at := event.At
	if at.IsZero() {
		at = time.Now()
		if l != nil && l.now != nil {
			at = l.now()
		}
	}
	var userID *int64
	if event.UserID != 0 {
		userID = &event.UserID
	}
	_, err := db.Exec(ctx,
		`INSERT INTO activity_log (event_type, event_time, entity_id, user_id) VALUES ($1, $2, NULLIF($3, ''), $4)`,
		event.EventType, at, event.EntityID, userID)
	return err
}
