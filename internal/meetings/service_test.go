package meetings

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
	"github.com/classmeet/backend/internal/schedule"
)

type memStore struct {
	mu       sync.Mutex
	meetings map[uuid.UUID]*models.Meeting
	saves    int
}

func newMemStore() *memStore {
	return &memStore{meetings: make(map[uuid.UUID]*models.Meeting)}
}

func (s *memStore) Find(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, nil
	}
	return m.Clone(), nil
}

func (s *memStore) FindMany(_ context.Context, f Filter) ([]*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Meeting
	for _, m := range s.meetings {
		if f.ParticipantID != nil && !m.HasParticipant(*f.ParticipantID) {
			continue
		}
		if f.DeleteBefore != nil && m.DeleteAt.After(*f.DeleteBefore) {
			continue
		}
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.saves++
	s.meetings[m.ID] = m.Clone()
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meetings, id)
	return nil
}

type memDirectory struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	cleared  []uuid.UUID
	restored []uuid.UUID
	findErr  error
	claimErr error
}

func (d *memDirectory) fail(find, claim error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findErr, d.claimErr = find, claim
}

func (d *memDirectory) pending(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	return ok && u.HasPendingCredential()
}

func (d *memDirectory) add(role models.Role, email string, credential string) *models.User {
	u := &models.User{ID: uuid.New(), Email: email, FirstName: "Test", Role: role}
	if credential != "" {
		c := credential
		u.OnboardingCredential = &c
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.users == nil {
		d.users = make(map[uuid.UUID]*models.User)
	}
	d.users[u.ID] = u
	return u
}

func (d *memDirectory) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	var out []*models.User
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d *memDirectory) ClaimOnboardingCredential(_ context.Context, id uuid.UUID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimErr != nil {
		return "", d.claimErr
	}
	u, ok := d.users[id]
	if !ok || !u.HasPendingCredential() {
		return "", nil
	}
	c := *u.OnboardingCredential
	u.OnboardingCredential = nil
	d.cleared = append(d.cleared, id)
	return c, nil
}

func (d *memDirectory) RestoreOnboardingCredential(_ context.Context, id uuid.UUID, credential string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok && u.OnboardingCredential == nil {
		c := credential
		u.OnboardingCredential = &c
	}
	d.restored = append(d.restored, id)
	return nil
}

type sent struct {
	to    string
	kind  models.NotificationType
	extra models.NotificationExtra
	start string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]bool
}

func (n *recordingNotifier) Send(_ context.Context, to *models.User, kind models.NotificationType, m *models.Meeting, extra models.NotificationExtra) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[to.Email] {
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, sent{to: to.Email, kind: kind, extra: extra, start: m.StartTime})
	return nil
}

func (n *recordingNotifier) byKind(kind models.NotificationType) []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sent
	for _, s := range n.sent {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fixedLinks struct{}

func (fixedLinks) Issue(_ context.Context, m *models.Meeting, userID uuid.UUID) (string, error) {
	return "https://app.test/join/" + m.ID.String() + "/" + userID.String(), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishMeetingEvent(_ uuid.UUID, event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *memStore
	users    *memDirectory
	notifier *recordingNotifier
	pub      *recordingPublisher
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		users:    &memDirectory{},
		notifier: &recordingNotifier{fail: map[string]bool{}},
		pub:      &recordingPublisher{},
	}
	f.svc = NewService(f.store, f.users, f.notifier, fixedLinks{}, nil)
	f.svc.SetClock(func() time.Time { return testNow })
	f.svc.SetPublisher(f.pub)
	return f
}

func (f *fixture) meeting(t *testing.T) *models.Meeting {
	t.Helper()
	m, err := f.svc.Create(context.Background(), CreateInput{
		ClassName: "Physics",
		Date:      "2026-03-10",
		StartTime: "10:00 AM",
		EndTime:   "11:30 AM",
	}, models.RoleAdmin)
	require.NoError(t, err)
	return m
}

func TestCreate(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)

	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, 90, m.Duration)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 31, 0, 0, time.UTC), m.DeleteAt)
	assert.Empty(t, m.Participants)
	assert.Equal(t, schedule.StatusUpcoming, m.Status(testNow))
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	valid := CreateInput{ClassName: "Math", Date: "2026-03-10", StartTime: "9:00 AM", EndTime: "10:00 AM"}

	_, err := f.svc.Create(ctx, valid, models.RoleStudent)
	assert.ErrorIs(t, err, ErrUnauthorized)

	bad := valid
	bad.StartTime = "25:00"
	_, err = f.svc.Create(ctx, bad, models.RoleOwner)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	bad = valid
	bad.Date = "10/03/2026"
	_, err = f.svc.Create(ctx, bad, models.RoleOwner)
	assert.ErrorIs(t, err, ErrInvalidDateFormat)

	assert.Zero(t, f.store.saves)
}

func TestCreate_DurationCapped(t *testing.T) {
	f := newFixture()
	m, err := f.svc.Create(context.Background(), CreateInput{
		ClassName: "Lab", Date: "2026-03-10", StartTime: "11:00 PM", EndTime: "3:00 AM",
	}, models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, schedule.MaxDurationMinutes, m.Duration)
}

func TestAllocate_Idempotent(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	b := f.users.add(models.RoleStudent, "b@test.io", "")
	ctx := context.Background()

	res, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AllocatedCount)
	require.Len(t, res.Results, 1)
	assert.Equal(t, RecipientSent, res.Results[0].Status)

	res, err = f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID, b.ID}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AllocatedCount)
	require.Len(t, res.Results, 2)
	assert.Equal(t, RecipientAlreadyAllocated, res.Results[0].Status)
	assert.Equal(t, "a@test.io", res.Results[0].Email)
	assert.Equal(t, RecipientSent, res.Results[1].Status)

	stored, _ := f.store.Find(ctx, m.ID)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, stored.ParticipantIDs())
	assert.Len(t, f.notifier.byKind(models.NotificationNew), 2)
}

func TestAllocate_AlreadyAllocatedOnlySkipsSave(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	ctx := context.Background()

	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleOwner)
	require.NoError(t, err)
	saves := f.store.saves

	res, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleOwner)
	require.NoError(t, err)
	assert.Zero(t, res.AllocatedCount)
	assert.Equal(t, saves, f.store.saves)
}

func TestAllocate_PartialFailure(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	ok := f.users.add(models.RoleStudent, "ok@test.io", "")
	bad := f.users.add(models.RoleStudent, "bad@test.io", "")
	f.notifier.fail["bad@test.io"] = true

	res, err := f.svc.Allocate(context.Background(), m.ID, []uuid.UUID{ok.ID, bad.ID}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AllocatedCount)
	assert.Equal(t, RecipientSent, res.Results[0].Status)
	assert.Equal(t, RecipientFailed, res.Results[1].Status)
	assert.Contains(t, res.Results[1].Error, "smtp unavailable")

	stored, _ := f.store.Find(context.Background(), m.ID)
	assert.True(t, stored.HasParticipant(bad.ID))
}

func TestAllocate_CredentialSentOnce(t *testing.T) {
	f := newFixture()
	first := f.meeting(t)
	second := f.meeting(t)
	u := f.users.add(models.RoleStudent, "new@test.io", "s3cretPass")
	ctx := context.Background()

	_, err := f.svc.Allocate(ctx, first.ID, []uuid.UUID{u.ID}, models.RoleAdmin)
	require.NoError(t, err)
	_, err = f.svc.Allocate(ctx, second.ID, []uuid.UUID{u.ID}, models.RoleAdmin)
	require.NoError(t, err)

	invites := f.notifier.byKind(models.NotificationNew)
	require.Len(t, invites, 2)
	assert.Equal(t, "s3cretPass", invites[0].extra.Credential)
	assert.Empty(t, invites[1].extra.Credential)
	assert.NotEmpty(t, invites[0].extra.Link)
	assert.NotEmpty(t, invites[1].extra.Link)
	assert.Equal(t, []uuid.UUID{u.ID}, f.users.cleared)
}

func TestAllocate_CredentialKeptWhenDeliveryFails(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	u := f.users.add(models.RoleStudent, "new@test.io", "s3cretPass")
	f.notifier.fail["new@test.io"] = true

	_, err := f.svc.Allocate(context.Background(), m.ID, []uuid.UUID{u.ID}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u.ID}, f.users.restored)
	assert.True(t, f.users.pending(u.ID))

	f.notifier.fail["new@test.io"] = false
	other := f.meeting(t)
	_, err = f.svc.Allocate(context.Background(), other.ID, []uuid.UUID{u.ID}, models.RoleAdmin)
	require.NoError(t, err)
	invites := f.notifier.byKind(models.NotificationNew)
	require.Len(t, invites, 1)
	assert.Equal(t, "s3cretPass", invites[0].extra.Credential)
	assert.False(t, f.users.pending(u.ID))
}

func TestAllocate_ClaimFailureWithholdsCredential(t *testing.T) {
	f := newFixture()
	first := f.meeting(t)
	second := f.meeting(t)
	u := f.users.add(models.RoleStudent, "new@test.io", "s3cretPass")
	ctx := context.Background()

	f.users.fail(nil, errors.New("directory write failed"))
	res, err := f.svc.Allocate(ctx, first.ID, []uuid.UUID{u.ID}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RecipientSent, res.Results[0].Status)

	f.users.fail(nil, nil)
	_, err = f.svc.Allocate(ctx, second.ID, []uuid.UUID{u.ID}, models.RoleAdmin)
	require.NoError(t, err)

	invites := f.notifier.byKind(models.NotificationNew)
	require.Len(t, invites, 2)
	assert.Empty(t, invites[0].extra.Credential)
	assert.Equal(t, "s3cretPass", invites[1].extra.Credential)

	disclosed := 0
	for _, inv := range invites {
		if inv.extra.Credential != "" {
			disclosed++
		}
	}
	assert.Equal(t, 1, disclosed)
}

func TestAllocate_Errors(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	admin := f.users.add(models.RoleAdmin, "admin@test.io", "")
	student := f.users.add(models.RoleStudent, "s@test.io", "")
	ctx := context.Background()

	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{student.ID}, models.RoleStudent)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Allocate(ctx, uuid.New(), []uuid.UUID{student.ID}, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Allocate(ctx, m.ID, []uuid.UUID{admin.ID, uuid.New()}, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNoValidParticipants)

	assert.Empty(t, f.notifier.sent)
}

func TestRemove(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	b := f.users.add(models.RoleStudent, "b@test.io", "")
	ctx := context.Background()
	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID, b.ID}, models.RoleAdmin)
	require.NoError(t, err)

	res, err := f.svc.Remove(ctx, m.ID, []uuid.UUID{a.ID, uuid.New()}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, []uuid.UUID{b.ID}, res.Meeting.ParticipantIDs())
	require.Len(t, res.Results, 1)
	assert.Equal(t, "a@test.io", res.Results[0].Email)

	removed := f.notifier.byKind(models.NotificationRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "a@test.io", removed[0].to)

	_, err = f.svc.Remove(ctx, m.ID, []uuid.UUID{b.ID}, models.RoleStudent)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestReschedule_StartOnly(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	ctx := context.Background()
	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleAdmin)
	require.NoError(t, err)

	start := "11:00 AM"
	res, err := f.svc.Reschedule(ctx, m.ID, RescheduleInput{StartTime: &start}, models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, "11:00 AM", res.Meeting.StartTime)
	assert.Equal(t, "11:30 AM", res.Meeting.EndTime)
	assert.Equal(t, 30, res.Meeting.Duration)
	assert.Equal(t, m.DeleteAt, res.Meeting.DeleteAt)

	sent := f.notifier.byKind(models.NotificationReschedule)
	require.Len(t, sent, 1)
	assert.Equal(t, "11:00 AM", sent[0].start)
}

func TestReschedule_DateAndEndMoveDeleteAt(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	date, end := "2026-04-02", "1:00 PM"

	res, err := f.svc.Reschedule(context.Background(), m.ID, RescheduleInput{Date: &date, EndTime: &end}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", res.Meeting.Day().String())
	assert.Equal(t, 120, res.Meeting.Duration)
	assert.Equal(t, time.Date(2026, 4, 2, 13, 1, 0, 0, time.UTC), res.Meeting.DeleteAt)
	assert.Empty(t, res.Results)
}

func TestReschedule_Errors(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	ctx := context.Background()
	bad := "noon"
	badDate := "2026/04/02"

	_, err := f.svc.Reschedule(ctx, m.ID, RescheduleInput{EndTime: &bad}, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
	_, err = f.svc.Reschedule(ctx, m.ID, RescheduleInput{Date: &badDate}, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidDateFormat)
	_, err = f.svc.Reschedule(ctx, uuid.New(), RescheduleInput{}, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Reschedule(ctx, m.ID, RescheduleInput{}, models.RoleStudent)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	b := f.users.add(models.RoleStudent, "b@test.io", "")
	ctx := context.Background()
	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID, b.ID}, models.RoleAdmin)
	require.NoError(t, err)
	f.notifier.fail["b@test.io"] = true

	res, err := f.svc.Delete(ctx, m.ID, models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, RecipientSent, res.Results[0].Status)
	assert.Equal(t, RecipientFailed, res.Results[1].Status)

	_, err = f.svc.Get(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, f.pub.events, EventCancelled)

	_, err = f.svc.Delete(ctx, m.ID, models.RoleOwner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_DirectoryDown(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	ctx := context.Background()
	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleAdmin)
	require.NoError(t, err)
	f.users.fail(errors.New("directory down"), nil)

	res, err := f.svc.Delete(ctx, m.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, a.ID, res.Results[0].UserID)
	assert.Equal(t, RecipientFailed, res.Results[0].Status)
	assert.Contains(t, res.Results[0].Error, "directory down")

	_, err = f.svc.Get(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReschedule_DirectoryDown(t *testing.T) {
	f := newFixture()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	ctx := context.Background()
	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleAdmin)
	require.NoError(t, err)
	f.users.fail(errors.New("directory down"), nil)

	start := "9:00 AM"
	res, err := f.svc.Reschedule(ctx, m.ID, RescheduleInput{StartTime: &start}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "9:00 AM", res.Meeting.StartTime)
	require.Len(t, res.Results, 1)
	assert.Equal(t, RecipientFailed, res.Results[0].Status)
	assert.Empty(t, f.notifier.byKind(models.NotificationReschedule))
}

func TestCreate_WrapsMidnightDeleteAt(t *testing.T) {
	f := newFixture()
	m, err := f.svc.Create(context.Background(), CreateInput{
		ClassName: "Night lab", Date: "2026-03-10", StartTime: "11:00 PM", EndTime: "1:00 AM",
	}, models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, 120, m.Duration)
	assert.Equal(t, time.Date(2026, 3, 11, 1, 1, 0, 0, time.UTC), m.DeleteAt)

	end := "12:30 AM"
	res, err := f.svc.Reschedule(context.Background(), m.ID, RescheduleInput{EndTime: &end}, models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 31, 0, 0, time.UTC), res.Meeting.DeleteAt)
}

func TestLifecycle_EndToEnd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "firstPass1")

	_, err := f.svc.Allocate(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleAdmin)
	require.NoError(t, err)
	end := "12:00 PM"
	_, err = f.svc.Reschedule(ctx, m.ID, RescheduleInput{EndTime: &end}, models.RoleAdmin)
	require.NoError(t, err)
	_, err = f.svc.Remove(ctx, m.ID, []uuid.UUID{a.ID}, models.RoleAdmin)
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, m.ID, models.RoleAdmin)
	require.NoError(t, err)

	var kinds []models.NotificationType
	for _, s := range f.notifier.sent {
		kinds = append(kinds, s.kind)
	}
	assert.Equal(t, []models.NotificationType{models.NotificationNew, models.NotificationReschedule, models.NotificationRemoved}, kinds)
	assert.Equal(t, []string{EventParticipantsChanged, EventRescheduled, EventParticipantsChanged, EventCancelled}, f.pub.events)
}

func TestList_ByParticipant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m1 := f.meeting(t)
	f.meeting(t)
	a := f.users.add(models.RoleStudent, "a@test.io", "")
	_, err := f.svc.Allocate(ctx, m1.ID, []uuid.UUID{a.ID}, models.RoleAdmin)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.List(ctx, Filter{ParticipantID: &a.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, m1.ID, mine[0].ID)
}
