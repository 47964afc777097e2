package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestPasswordResetJobSendsLink(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewPasswordResetJob(mailer, "https://agri.example/", nil, nil)
	task, err := NewPasswordResetTask(PasswordResetPayload{
		Email:     "ana@example.com",
		Username:  "ana",
		Token:     "tok-123",
		ExpiresAt: time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, TaskPasswordResetEmail, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Contains(t, msg.Body, "Hello ana,")
	assert.Contains(t, msg.Body, "https://agri.example/auth/reset?token=tok-123")
	assert.Contains(t, msg.Body, "2024-06-15 13:00 UTC")
}

func TestPasswordResetJobSkipsBadPayload(t *testing.T) {
	job := NewPasswordResetJob(&recordingMailer{}, "http://localhost", nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskPasswordResetEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	body, _ := json.Marshal(PasswordResetPayload{Email: "ana@example.com"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskPasswordResetEmail, body))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPasswordResetJobRetriesMailerErrors(t *testing.T) {
	boom := errors.New("relay refused")
	job := NewPasswordResetJob(&recordingMailer{err: boom}, "http://localhost", nil, nil)
	task, err := NewPasswordResetTask(PasswordResetPayload{Email: "a@b.c", Token: "t"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSMTPMailerFormatsMessage(t *testing.T) {
	m := NewSMTPMailer("127.0.0.1", 1025, "no-reply@agristock.local")
	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hi", Body: "line1\nline2"}))
	assert.Equal(t, "127.0.0.1:1025", gotAddr)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: no-reply@agristock.local\r\n"))
	assert.Contains(t, gotMsg, "Subject: Hi\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline1\r\nline2"))

	err := m.Send(context.Background(), Message{To: "x@y.z\r\nBcc: evil@y.z", Subject: "Hi"})
	assert.Error(t, err)
}

type execStub struct {
	sql  string
	args []any
}

func (e *execStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql, e.args = sql, args
	return pgconn.NewCommandTag("DELETE 4"), nil
}

func TestActivityPruneUsesRetention(t *testing.T) {
	db := &execStub{}
	job := NewActivityPruneJob(db, nil, nil)
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewActivityPruneTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Contains(t, db.sql, "DELETE FROM activity_log")
	assert.Equal(t, now.Add(-48*time.Hour), db.args[0])
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (s inspectorStub) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestJobsHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		body      string
	}{
		{"no inspector", nil, http.StatusOK, `"pending":0`},
		{"queue info", inspectorStub{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Failed: 1}}, http.StatusOK, `"pending":3`},
		{"redis down", inspectorStub{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, `"Queue Unavailable"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Route("/jobs", NewHandler(tc.inspector, nil).MountRoutes)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}
