package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmeet/backend/internal/models"
)

type sentMail struct {
	to, subject, html string
	hasDeadline       bool
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := ctx.Deadline()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, html: html, hasDeadline: ok})
	return f.fail
}

type memLogs struct {
	mu   sync.Mutex
	logs map[uuid.UUID]*models.EmailLog
}

func newMemLogs() *memLogs { return &memLogs{logs: map[uuid.UUID]*models.EmailLog{}} }

func (m *memLogs) Create(_ context.Context, l *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	cp := *l
	m.logs[l.ID] = &cp
	return nil
}

func (m *memLogs) GetByID(_ context.Context, id uuid.UUID) (*models.EmailLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *memLogs) MarkSent(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[id].Status = models.EmailLogStatusSent
	m.logs[id].Attempts++
	return nil
}

func (m *memLogs) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[id].Status = models.EmailLogStatusFailed
	m.logs[id].ErrorMessage = reason
	m.logs[id].Attempts++
	return nil
}

func (m *memLogs) only(t *testing.T) *models.EmailLog {
	t.Helper()
	require.Len(t, m.logs, 1)
	for _, l := range m.logs {
		return l
	}
	return nil
}

func fixture() (*models.User, *models.Meeting) {
	u := &models.User{ID: uuid.New(), Email: "ana@example.com", FirstName: "Ana"}
	m := &models.Meeting{
		ID:        uuid.New(),
		ClassName: "Chemistry",
		Date:      time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00 AM",
		EndTime:   "11:30 AM",
		Duration:  90,
	}
	return u, m
}

func TestRender(t *testing.T) {
	u, m := fixture()
	tests := []struct {
		kind     models.NotificationType
		extra    models.NotificationExtra
		subject  string
		contains []string
		excludes []string
	}{
		{
			kind:     models.NotificationNew,
			extra:    models.NotificationExtra{Link: "http://x/abc", Credential: "pw123"},
			subject:  "Meeting Invitation: Chemistry",
			contains: []string{"Hello <b>Ana</b>", "Duration: 90 minutes", `href="http://x/abc"`, "Password: pw123", "Please login using this password."},
		},
		{
			kind:     models.NotificationNew,
			extra:    models.NotificationExtra{Link: "http://x/abc"},
			subject:  "Meeting Invitation: Chemistry",
			contains: []string{"allocated to a new meeting", "Please login to view details."},
			excludes: []string{"Password:"},
		},
		{
			kind:     models.NotificationRemoved,
			subject:  "Removed from Meeting: Chemistry",
			contains: []string{"You have been removed from:", "Time: 10:00 AM - 11:30 AM"},
			excludes: []string{"Duration:"},
		},
		{
			kind:     models.NotificationReschedule,
			subject:  "Rescheduled: Chemistry",
			contains: []string{"has been rescheduled", "Date: Mon Mar 04 2030", "update your calendar"},
		},
		{
			kind:     models.NotificationCancel,
			subject:  "Meeting Cancelled: Chemistry",
			contains: []string{"has been cancelled"},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			subject, html, err := Render(tt.kind, u, m, tt.extra)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
			for _, s := range tt.contains {
				assert.Contains(t, html, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, html, s)
			}
		})
	}

	_, _, err := Render("bogus", u, m, models.NotificationExtra{})
	assert.Error(t, err)
}

func TestRender_EscapesClassName(t *testing.T) {
	u, m := fixture()
	m.ClassName = "<script>x</script>"
	_, html, err := Render(models.NotificationCancel, u, m, models.NotificationExtra{})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestEmailNotifier_Send(t *testing.T) {
	u, m := fixture()

	t.Run("success", func(t *testing.T) {
		mailer, logs := &fakeMailer{}, newMemLogs()
		n := NewEmailNotifier(mailer, logs, time.Second, nil)
		require.NoError(t, n.Send(context.Background(), u, models.NotificationReschedule, m, models.NotificationExtra{}))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "ana@example.com", mailer.sent[0].to)
		assert.True(t, mailer.sent[0].hasDeadline)
		l := logs.only(t)
		assert.Equal(t, models.EmailLogStatusSent, l.Status)
		assert.Equal(t, models.NotificationReschedule, l.EmailType)
		assert.Equal(t, m.ID, *l.MeetingID)
	})

	t.Run("failure is recorded and returned", func(t *testing.T) {
		mailer, logs := &fakeMailer{fail: errors.New("mailbox unavailable")}, newMemLogs()
		n := NewEmailNotifier(mailer, logs, time.Second, nil)
		err := n.Send(context.Background(), u, models.NotificationCancel, m, models.NotificationExtra{})
		require.Error(t, err)
		l := logs.only(t)
		assert.Equal(t, models.EmailLogStatusFailed, l.Status)
		assert.Equal(t, "mailbox unavailable", l.ErrorMessage)
	})

	t.Run("without log store", func(t *testing.T) {
		mailer := &fakeMailer{}
		n := NewEmailNotifier(mailer, nil, 0, nil)
		require.NoError(t, n.Send(context.Background(), u, models.NotificationCancel, m, models.NotificationExtra{}))
		assert.Len(t, mailer.sent, 1)
	})
}

func TestEmailNotifier_Resend(t *testing.T) {
	u, m := fixture()
	mailer, logs := &fakeMailer{fail: errors.New("timeout")}, newMemLogs()
	n := NewEmailNotifier(mailer, logs, time.Second, nil)
	require.Error(t, n.Send(context.Background(), u, models.NotificationRemoved, m, models.NotificationExtra{}))
	l := logs.only(t)

	mailer.fail = nil
	require.NoError(t, n.Resend(context.Background(), l.ID))
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, mailer.sent[0].html, mailer.sent[1].html)
	assert.Equal(t, models.EmailLogStatusSent, logs.only(t).Status)

	require.NoError(t, n.Resend(context.Background(), l.ID))
	assert.Len(t, mailer.sent, 2, "sent logs are not delivered twice")

	assert.ErrorIs(t, n.Resend(context.Background(), uuid.New()), ErrLogNotFound)
}

func TestLogMailer_NeverFails(t *testing.T) {
	n := NewEmailNotifier(NewLogMailer(nil), nil, 0, nil)
	u := &models.User{ID: uuid.New(), Email: "s@test.io", FirstName: "Sam"}
	m := &models.Meeting{ID: uuid.New(), ClassName: "Bio", Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), StartTime: "9:00 AM", EndTime: "10:00 AM"}
	assert.NoError(t, n.Send(context.Background(), u, models.NotificationCancel, m, models.NotificationExtra{}))
}
