package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/jobs"
)

// ResetMailer queues password-reset emails.
type ResetMailer interface {
	EnqueuePasswordReset(ctx context.Context, payload jobs.PasswordResetPayload) error
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens ResetTokens
	mailer ResetMailer
	logger *slog.Logger
	cost   int
}

// NewService constructs a new Service. tokens and mailer may be nil, which
// disables password resets.
func NewService(repo Repository, tokens ResetTokens, mailer ResetMailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, tokens: tokens, mailer: mailer, logger: logger, cost: bcrypt.DefaultCost}
}

// Authenticate validates username-or-email and password credentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	user, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("auth lookup", slog.Any("error", err))
		}
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	s.record(ctx, shared.EventUserLogin, user.ID)
	return user, nil
}

// Register creates a staff account. Duplicate usernames or emails yield shared.ErrDuplicate.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, NewUser{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         rbac.DefaultRole,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// RequestPasswordReset issues a token and queues the email. Unknown addresses
// succeed silently so the form does not reveal which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if s.tokens == nil || s.mailer == nil {
		return errors.New("auth: password reset not configured")
	}
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, shared.ErrNotFound) {
		s.logger.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	token, expiresAt, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.mailer.EnqueuePasswordReset(ctx, jobs.PasswordResetPayload{
		Email:     user.Email,
		Username:  user.Username,
		Token:     token,
		ExpiresAt: expiresAt,
	}); err != nil {
		return fmt.Errorf("auth: enqueue reset email: %w", err)
	}
	s.record(ctx, shared.EventPasswordReset, user.ID)
	return nil
}

// ResetPassword consumes token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if s.tokens == nil {
		return ErrResetTokenInvalid
	}
	userID, err := s.tokens.Consume(ctx, token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// record writes an activity row; failures are logged and never block sign-in.
func (s *Service) record(ctx context.Context, eventType string, userID int64) {
	err := s.repo.RecordActivity(ctx, shared.ActivityEvent{
		EventType: eventType,
		EntityID:  strconv.FormatInt(userID, 10),
		UserID:    userID,
	})
	if err != nil {
		s.logger.Warn("record auth activity", slog.String("event", eventType), slog.Any("error", err))
	}
}
