package inventory

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

// Repository persists warehouses and batches in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	activity *shared.ActivityLogger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, activity: shared.NewActivityLogger(pool)}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertBatch(ctx context.Context, in CreateBatchInput) (int64, error)
	InsertHarvestSession(ctx context.Context, batchID int64, in CreateBatchInput) error
	DeleteBatch(ctx context.Context, id int64) error
	RecordActivity(ctx context.Context, event shared.ActivityEvent) error
}

type txRepo struct {
	tx       pgx.Tx
	activity *shared.ActivityLogger
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, activity: r.activity})
	})
}

const listWarehousesSQL = `
SELECT w.warehouse_id, w.name, w.location, w.capacity, COALESCE(SUM(b.quantity), 0)::float8
FROM warehouse w
LEFT JOIN batch b ON b.warehouse_id = w.warehouse_id
GROUP BY w.warehouse_id
ORDER BY w.name`

// ListWarehouses returns every warehouse ordered by name.
func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, listWarehousesSQL)
	if err != nil {
		return nil, fmt.Errorf("inventory: list warehouses: %w", err)
	}
	return pgx.CollectRows(rows, scanWarehouse)
}

const getWarehouseSQL = `
SELECT w.warehouse_id, w.name, w.location, w.capacity, COALESCE(SUM(b.quantity), 0)::float8
FROM warehouse w
LEFT JOIN batch b ON b.warehouse_id = w.warehouse_id
WHERE w.warehouse_id = $1
GROUP BY w.warehouse_id`

// GetWarehouse loads one warehouse or shared.ErrNotFound.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	rows, err := r.pool.Query(ctx, getWarehouseSQL, id)
	if err != nil {
		return Warehouse{}, fmt.Errorf("inventory: get warehouse: %w", err)
	}
	wh, err := pgx.CollectExactlyOneRow(rows, scanWarehouse)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, shared.ErrNotFound
	}
	return wh, err
}

func scanWarehouse(row pgx.CollectableRow) (Warehouse, error) {
	var wh Warehouse
	err := row.Scan(&wh.ID, &wh.Name, &wh.Location, &wh.Capacity, &wh.StoredQuantity)
	return wh, err
}

const listBatchesSQL = `
SELECT b.batch_id, b.warehouse_id, w.name, b.product_name, b.quantity::float8, b.harvest_date, b.created_at
FROM batch b
JOIN warehouse w ON w.warehouse_id = b.warehouse_id
WHERE ($1::bigint = 0 OR b.warehouse_id = $1)
ORDER BY b.created_at DESC, b.batch_id DESC
LIMIT $2`

// ListBatches returns batches newest first.
func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, listBatchesSQL, filter.WarehouseID, limit)
	if err != nil {
		return nil, fmt.Errorf("inventory: list batches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Batch, error) {
		var b Batch
		err := row.Scan(&b.ID, &b.WarehouseID, &b.WarehouseName, &b.ProductName, &b.Quantity, &b.HarvestDate, &b.CreatedAt)
		return b, err
	})
}

func (r *txRepo) InsertBatch(ctx context.Context, in CreateBatchInput) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO batch (warehouse_id, product_name, quantity, harvest_date) VALUES ($1, $2, $3::numeric, $4::date) RETURNING batch_id`,
		in.WarehouseID, in.ProductName, strconv.FormatFloat(in.Quantity, 'f', -1, 64), in.HarvestDate,
	).Scan(&id)
	if db.IsForeignKeyViolation(err) {
		return 0, shared.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("inventory: insert batch: %w", err)
	}
	return id, nil
}

func (r *txRepo) InsertHarvestSession(ctx context.Context, batchID int64, in CreateBatchInput) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO harvest_session (Year, Month, Day, batch_id) VALUES ($1, $2, $3, $4)`,
		in.HarvestDate.Year(), int(in.HarvestDate.Month()), in.HarvestDate.Day(), batchID)
	if err != nil {
		return fmt.Errorf("inventory: insert harvest session: %w", err)
	}
	return nil
}

func (r *txRepo) DeleteBatch(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM batch WHERE batch_id = $1`, id)
	if err != nil {
		return fmt.Errorf("inventory: delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) RecordActivity(ctx context.Context, event shared.ActivityEvent) error {
	if err := r.activity.RecordWith(ctx, r.tx, event); err != nil {
		return fmt.Errorf("inventory: record activity: %w", err)
	}
	return nil
}
