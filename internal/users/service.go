package users

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListUsers(ctx context.Context) ([]User, error)
}

// Service handles account administration.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance. logger may be nil.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// ChangeRole assigns role to userID and records user_role_changed in the same
// transaction.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID int64, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if !rbac.ValidRole(role) {
		return ErrInvalidRole
	}
	if userID <= 0 {
		return shared.ErrNotFound
	}
	if actorID == userID {
		return ErrSelfRoleChange
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateRole(ctx, userID, role); err != nil {
			return err
		}
		return tx.RecordActivity(ctx, shared.ActivityEvent{
			EventType: shared.EventRoleChanged,
			EntityID:  strconv.FormatInt(userID, 10),
			UserID:    actorID,
			At:        s.now(),
		})
	})
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("change role", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return err
	}
	s.logger.Info("role changed", slog.Int64("user_id", userID), slog.String("role", role), slog.Int64("actor_id", actorID))
	return nil
}
