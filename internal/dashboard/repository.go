package dashboard

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoCounters is returned when the counters query produced no row.
var ErrNoCounters = errors.New("dashboard: counters query returned no row")

// Repository reads the data behind the page shell.
type Repository interface {
	RecentActivity(ctx context.Context, limit int) ([]ActivityRecord, error)
	Counters(ctx context.Context, window CounterWindow) (Counters, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recentActivitySQL = `
SELECT COALESCE(u.username, 'System'), a.event_type, COALESCE(a.entity_id, ''), a.event_time
FROM activity_log a
LEFT JOIN users u ON u.user_id = a.user_id
ORDER BY a.event_time DESC, a.log_id DESC
LIMIT $1`

// RecentActivity returns the newest activity_log rows, most recent first.
func (r *PGRepository) RecentActivity(ctx context.Context, limit int) ([]ActivityRecord, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("dashboard repository not initialised")
	}
	rows, err := r.pool.Query(ctx, recentActivitySQL, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ActivityRecord, error) {
		var rec ActivityRecord
		err := row.Scan(&rec.Username, &rec.EventType, &rec.EntityID, &rec.EventTime)
		return rec, err
	})
}

// The harvest filter compares the composite (Year, Month, Day) columns as a row
// value, so sessions with impossible calendar dates cannot fail the query.
const countersSQL = `
SELECT
    (SELECT COUNT(*) FROM batch),
    (SELECT COUNT(*) FROM warehouse),
    (SELECT COUNT(*) FROM harvest_session
        WHERE (Year, Month, Day) >= ($1::int, 1, 1) AND (Year, Month, Day) <= ($1::int, 12, 31)),
    (SELECT COUNT(*) FROM order_table
        WHERE OrderDate >= $2::date AND OrderDate < $3::date)`

// Counters runs the four scalar subqueries in a single round trip.
func (r *PGRepository) Counters(ctx context.Context, window CounterWindow) (Counters, error) {
	if r == nil || r.pool == nil {
		return Counters{}, errors.New("dashboard repository not initialised")
	}
	var c Counters
	err := r.pool.QueryRow(ctx, countersSQL, window.Year, window.MonthStart, window.MonthEnd).
		Scan(&c.Batches, &c.Warehouses, &c.HarvestsThisYear, &c.OrdersThisMonth)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counters{}, ErrNoCounters
	}
	if err != nil {
		return Counters{}, err
	}
	return c, nil
}

var _ Repository = (*PGRepository)(nil)
