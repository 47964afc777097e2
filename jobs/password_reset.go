package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agristock/agristock/internal/jobs"
)

// PasswordResetJob emails reset links queued by the auth handler.
type PasswordResetJob struct {
	Mailer  Mailer
	BaseURL string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPasswordResetJob wires dependencies for the reset email handler.
func NewPasswordResetJob(mailer Mailer, baseURL string, logger *slog.Logger, metrics *jobmetrics.Metrics) *PasswordResetJob {
	return &PasswordResetJob{Mailer: mailer, BaseURL: baseURL, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPasswordResetEmail tasks.
func (j *PasswordResetJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("password reset: handler not configured")
	}
	var payload PasswordResetPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("password reset: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" || payload.Token == "" {
		return fmt.Errorf("password reset: incomplete payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskPasswordResetEmail)
	defer func() {
		err = tracker.End(err)
	}()

	if err = j.Mailer.Send(ctx, j.message(payload)); err != nil {
		j.logger().Error("send password reset email", slog.String("email", payload.Email), slog.Any("error", err))
		return err
	}
	j.logger().Info("password reset email sent", slog.String("email", payload.Email))
	return nil
}

func (j *PasswordResetJob) message(p PasswordResetPayload) Message {
	link := ResetLink(j.BaseURL, p.Token)
	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", firstNonEmpty(p.Username, p.Email))
	body.WriteString("Someone asked to reset the password of your AgriStock account.\n")
	fmt.Fprintf(&body, "Open the link below to choose a new password:\n\n%s\n\n", link)
	if !p.ExpiresAt.IsZero() {
		fmt.Fprintf(&body, "The link expires at %s.\n", p.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	body.WriteString("If you did not ask for this, ignore this email.\n")
	return Message{To: p.Email, Subject: "Reset your AgriStock password", Body: body.String()}
}

// ResetLink builds the absolute URL of the reset form for token.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/reset?token=" + url.QueryEscape(token)
}

func (j *PasswordResetJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
