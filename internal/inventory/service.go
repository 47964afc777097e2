package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/agristock/agristock/internal/search"
	"github.com/agristock/agristock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
}

// Service coordinates warehouse and batch operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. logger may be nil.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// ListWarehouses returns all warehouses.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

// GetWarehouse returns one warehouse.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, shared.ErrNotFound
	}
	return s.repo.GetWarehouse(ctx, id)
}

// ListBatches returns batches newest first.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	return s.repo.ListBatches(ctx, filter)
}

// SearchBatches lists batches and keeps those whose table row contains query.
func (s *Service) SearchBatches(ctx context.Context, filter BatchFilter, query string) ([]Batch, error) {
	batches, err := s.repo.ListBatches(ctx, filter)
	if err != nil {
		return nil, err
	}
	return search.Filter(batches, query, Batch.Row), nil
}

// CreateBatch stores a batch, its harvest session and the batch_created activity
// in one transaction.
func (s *Service) CreateBatch(ctx context.Context, in CreateBatchInput) (int64, error) {
	in.ProductName = strings.TrimSpace(in.ProductName)
	if in.ProductName == "" || in.WarehouseID <= 0 || in.HarvestDate.IsZero() {
		return 0, ErrInvalidBatch
	}
	if in.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if afterToday(in.HarvestDate, s.now()) {
		return 0, ErrHarvestInFuture
	}

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.InsertBatch(ctx, in)
		if err != nil {
			return err
		}
		if err := tx.InsertHarvestSession(ctx, id, in); err != nil {
			return err
		}
		return tx.RecordActivity(ctx, shared.ActivityEvent{
			EventType: shared.EventBatchCreated,
			EntityID:  strconv.FormatInt(id, 10),
			UserID:    in.ActorID,
			At:        s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("batch created", slog.Int64("batch_id", id), slog.Int64("warehouse_id", in.WarehouseID))
	}
	return id, nil
}

// DeleteBatch removes a batch and records batch_deleted in one transaction.
func (s *Service) DeleteBatch(ctx context.Context, id, actorID int64) error {
	if id <= 0 {
		return shared.ErrNotFound
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteBatch(ctx, id); err != nil {
			return err
		}
		return tx.RecordActivity(ctx, shared.ActivityEvent{
			EventType: shared.EventBatchDeleted,
			EntityID:  strconv.FormatInt(id, 10),
			UserID:    actorID,
			At:        s.now(),
		})
	})
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && s.logger != nil {
			s.logger.Error("delete batch", slog.Int64("batch_id", id), slog.Any("error", err))
		}
		return err
	}
	if s.logger != nil {
		s.logger.Info("batch deleted", slog.Int64("batch_id", id), slog.Int64("actor_id", actorID))
	}
	return nil
}

// afterToday compares calendar dates only, using now's location for today.
func afterToday(date, now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dy, dm, dd := date.Date()
	return time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC).After(today)
}
