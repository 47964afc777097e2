package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agristock/agristock/internal/platform/db"
	"github.com/agristock/agristock/internal/shared"
)

// Repository reads and updates accounts in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	activity *shared.ActivityLogger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, activity: shared.NewActivityLogger(pool)}
}

// TxRepository is the transactional surface used by Service.ChangeRole.
type TxRepository interface {
	UpdateRole(ctx context.Context, userID int64, role string) error
	RecordActivity(ctx context.Context, event shared.ActivityEvent) error
}

type txRepo struct {
	tx       pgx.Tx
	activity *shared.ActivityLogger
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, activity: r.activity})
	})
}

const listUsersSQL = `
SELECT user_id, username, email, role, created_at
FROM users
ORDER BY username`

// ListUsers returns every account ordered by username.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
		return u, err
	})
}

func (r *txRepo) UpdateRole(ctx context.Context, userID int64, role string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE users SET role = $2 WHERE user_id = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("users: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) RecordActivity(ctx context.Context, event shared.ActivityEvent) error {
	if err := r.activity.RecordWith(ctx, r.tx, event); err != nil {
		return fmt.Errorf("users: record activity: %w", err)
	}
	return nil
}
