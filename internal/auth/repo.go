package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agristock/agristock/internal/platform/db"
	"github.com/agristock/agristock/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, nu NewUser) (*User, error)
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	RecordActivity(ctx context.Context, event shared.ActivityEvent) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool     *pgxpool.Pool
	activity *shared.ActivityLogger
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, activity: shared.NewActivityLogger(pool)}
}

const userColumns = `user_id, username, email, password_hash, role, created_at`

func scanUser(row pgx.CollectableRow) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PGRepository) findOne(ctx context.Context, sql string, args ...any) (*User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	return user, err
}

// FindByLogin fetches a user by username or email, case-insensitively.
func (r *PGRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1) ORDER BY user_id LIMIT 1`, login)
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// CreateUser inserts the account and its user_signup activity in one transaction.
func (r *PGRepository) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	var user *User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`INSERT INTO users (username, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING `+userColumns,
			nu.Username, nu.Email, nu.PasswordHash, nu.Role)
		if err != nil {
			return err
		}
		user, err = pgx.CollectExactlyOneRow(rows, scanUser)
		if err != nil {
			return err
		}
		return r.activity.RecordWith(ctx, tx, shared.ActivityEvent{
			EventType: shared.EventUserSignup,
			EntityID:  strconv.FormatInt(user.ID, 10),
			UserID:    user.ID,
		})
	})
	if db.IsUniqueViolation(err) {
		return nil, shared.ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return user, nil
}

// UpdatePassword replaces the stored hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE user_id = $1`, userID, hash)
	if err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecordActivity appends an auth event to activity_log.
func (r *PGRepository) RecordActivity(ctx context.Context, event shared.ActivityEvent) error {
	return r.activity.Record(ctx, event)
}

var _ Repository = (*PGRepository)(nil)
