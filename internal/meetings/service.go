package meetings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/internal/schedule"
)

// DefaultConcurrency bounds parallel notification sends per operation.
const DefaultConcurrency = 4

// CreateInput holds the user-entered fields of a new meeting.
type CreateInput struct {
	ClassName string
	Date      string
	StartTime string
	EndTime   string
}

// RescheduleInput holds the fields to overwrite. Nil or empty fields are left unchanged.
type RescheduleInput struct {
	Date      *string
	StartTime *string
	EndTime   *string
}

// AllocateResult is the outcome of an allocation batch.
type AllocateResult struct {
	Meeting        *models.Meeting   `json:"meeting"`
	AllocatedCount int               `json:"allocated_count"`
	Results        []RecipientResult `json:"email_results"`
}

// ChangeResult is the outcome of remove, reschedule and delete.
type ChangeResult struct {
	Meeting *models.Meeting   `json:"meeting,omitempty"`
	Count   int               `json:"count"`
	Results []RecipientResult `json:"email_results"`
}

// Service implements the meeting lifecycle: create, allocate, remove, reschedule, delete.
type Service struct {
	store       Store
	users       Directory
	notifier    Notifier
	links       LinkIssuer
	locker      Locker
	publisher   Publisher
	now         func() time.Time
	concurrency int
	logger      *zap.Logger
}

// NewService creates a meeting lifecycle service with an in-process locker.
func NewService(store Store, users Directory, notifier Notifier, links LinkIssuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		users:       users,
		notifier:    notifier,
		links:       links,
		locker:      NewKeyedMutex(),
		now:         time.Now,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// SetLocker replaces the per-meeting locker (e.g. a Redis lock shared across instances).
func (s *Service) SetLocker(l Locker) {
	if l != nil {
		s.locker = l
	}
}

// SetPublisher sets the live event publisher.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// SetClock overrides the wall clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetConcurrency sets the number of parallel notification sends.
func (s *Service) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Now returns the service's current wall-clock time.
func (s *Service) Now() time.Time { return s.now() }

// Get returns a meeting or ErrNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	m, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// List returns meetings matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]*models.Meeting, error) {
	list, err := s.store.FindMany(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return list, nil
}

// Create validates the input and persists a meeting with no participants.
func (s *Service) Create(ctx context.Context, in CreateInput, actor models.Role) (*models.Meeting, error) {
	if !actor.Can(models.ActionCreateMeeting) {
		return nil, ErrUnauthorized
	}
	start, okStart := schedule.ParseClock(in.StartTime)
	end, okEnd := schedule.ParseClock(in.EndTime)
	if !okStart || !okEnd {
		return nil, ErrInvalidTimeFormat
	}
	day, ok := schedule.ParseDate(in.Date)
	if !ok {
		return nil, ErrInvalidDateFormat
	}

	m := &models.Meeting{
		ClassName:    strings.TrimSpace(in.ClassName),
		Date:         day.Midnight(time.UTC),
		StartTime:    strings.TrimSpace(in.StartTime),
		EndTime:      strings.TrimSpace(in.EndTime),
		Duration:     schedule.Span(start, end),
		DeleteAt:     schedule.DeleteAt(day, start, end, s.now().Location()),
		Participants: []models.Participant{},
	}
	if err := s.store.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save meeting: %w", err)
	}
	s.logger.Info("meeting created",
		zap.String("meeting_id", m.ID.String()),
		zap.String("date", day.String()),
		zap.Int("duration", m.Duration),
	)
	return m, nil
}

// Allocate adds students to a meeting and sends each newly added one an invitation with a
// fresh access link. Ids already allocated are reported as already_allocated. A failed
// invitation leaves the participant allocated.
func (s *Service) Allocate(ctx context.Context, meetingID uuid.UUID, participantIDs []uuid.UUID, actor models.Role) (*AllocateResult, error) {
	if !actor.Can(models.ActionAllocate) {
		return nil, ErrUnauthorized
	}
	unlock, err := s.lock(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	students, err := s.resolve(ctx, participantIDs, func(u *models.User) bool { return u.Role == models.RoleStudent })
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, ErrNoValidParticipants
	}

	results := make([]RecipientResult, len(students))
	var invites []delivery
	now := s.now()
	for i, u := range students {
		if m.HasParticipant(u.ID) {
			results[i] = alreadyAllocated(u)
			continue
		}
		m.Participants = append(m.Participants, models.Participant{UserID: u.ID, AddedAt: now})
		invites = append(invites, delivery{index: i, user: u})
	}

	if len(invites) > 0 {
		if err := s.store.Save(ctx, m); err != nil {
			return nil, fmt.Errorf("save meeting: %w", err)
		}
	}
	snapshot := m.Clone()
	s.fanOut(ctx, invites, results, func(ctx context.Context, u *models.User) error {
		return s.invite(ctx, u, snapshot)
	})

	s.logger.Info("participants allocated",
		zap.String("meeting_id", m.ID.String()),
		zap.Int("requested", len(participantIDs)),
		zap.Int("allocated", len(invites)),
	)
	if len(invites) > 0 {
		s.publish(m.ID, EventParticipantsChanged, snapshot)
	}
	return &AllocateResult{Meeting: snapshot, AllocatedCount: len(invites), Results: results}, nil
}

// invite sends the "new" notification. A pending onboarding credential is claimed from the
// directory before sending, so it is attached to at most one invitation, and restored when
// that send fails. If the claim fails the invitation goes out without it.
func (s *Service) invite(ctx context.Context, u *models.User, m *models.Meeting) error {
	link, err := s.links.Issue(ctx, m, u.ID)
	if err != nil {
		return fmt.Errorf("issue access link: %w", err)
	}
	extra := models.NotificationExtra{Link: link}
	if u.HasPendingCredential() {
		credential, err := s.users.ClaimOnboardingCredential(ctx, u.ID)
		if err != nil {
			s.logger.Error("claim onboarding credential failed", zap.Error(err), zap.String("user_id", u.ID.String()))
		}
		extra.Credential = credential
	}
	if err := s.notifier.Send(ctx, u, models.NotificationNew, m, extra); err != nil {
		if extra.Credential != "" {
			if rerr := s.users.RestoreOnboardingCredential(ctx, u.ID, extra.Credential); rerr != nil {
				s.logger.Error("restore onboarding credential failed", zap.Error(rerr), zap.String("user_id", u.ID.String()))
			}
		}
		return err
	}
	return nil
}

// Remove drops the given participants from a meeting and notifies each one removed.
// Ids that are not allocated are ignored.
func (s *Service) Remove(ctx context.Context, meetingID uuid.UUID, participantIDs []uuid.UUID, actor models.Role) (*ChangeResult, error) {
	if !actor.Can(models.ActionRemoveParticipants) {
		return nil, ErrUnauthorized
	}
	unlock, err := s.lock(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	drop := make(map[uuid.UUID]bool, len(participantIDs))
	for _, id := range participantIDs {
		drop[id] = true
	}
	kept := make([]models.Participant, 0, len(m.Participants))
	var removed []uuid.UUID
	for _, p := range m.Participants {
		if drop[p.UserID] {
			removed = append(removed, p.UserID)
			continue
		}
		kept = append(kept, p)
	}
	m.Participants = kept
	if len(removed) > 0 {
		if err := s.store.Save(ctx, m); err != nil {
			return nil, fmt.Errorf("save meeting: %w", err)
		}
	}

	users, err := s.resolve(ctx, removed, nil)
	if err != nil {
		s.logger.Error("resolve removed participants failed", zap.Error(err), zap.String("meeting_id", m.ID.String()))
		users = nil
	}
	snapshot := m.Clone()
	results := s.notifyAll(ctx, users, models.NotificationRemoved, snapshot)

	s.logger.Info("participants removed", zap.String("meeting_id", m.ID.String()), zap.Int("removed", len(removed)))
	if len(removed) > 0 {
		s.publish(m.ID, EventParticipantsChanged, snapshot)
	}
	return &ChangeResult{Meeting: snapshot, Count: len(removed), Results: results}, nil
}

// Reschedule overwrites any supplied date, start or end time, recomputes the duration and
// purge instant, and notifies every current participant.
func (s *Service) Reschedule(ctx context.Context, meetingID uuid.UUID, in RescheduleInput, actor models.Role) (*ChangeResult, error) {
	if !actor.Can(models.ActionReschedule) {
		return nil, ErrUnauthorized
	}
	date, start, end := value(in.Date), value(in.StartTime), value(in.EndTime)
	var day schedule.Date
	if date != "" {
		d, ok := schedule.ParseDate(date)
		if !ok {
			return nil, ErrInvalidDateFormat
		}
		day = d
	}
	for _, t := range []string{start, end} {
		if t == "" {
			continue
		}
		if _, ok := schedule.ParseClock(t); !ok {
			return nil, ErrInvalidTimeFormat
		}
	}

	unlock, err := s.lock(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if date != "" {
		m.Date = day.Midnight(time.UTC)
	}
	if start != "" {
		m.StartTime = start
	}
	if end != "" {
		m.EndTime = end
	}
	if m.StartTime != "" && m.EndTime != "" {
		m.Duration = schedule.Duration(m.StartTime, m.EndTime)
	}
	if endClock, ok := schedule.ParseClock(m.EndTime); ok {
		startClock, ok := schedule.ParseClock(m.StartTime)
		if !ok {
			startClock = endClock
		}
		m.DeleteAt = schedule.DeleteAt(m.Day(), startClock, endClock, s.now().Location())
	}
	if err := s.store.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save meeting: %w", err)
	}

	snapshot := m.Clone()
	results := s.notifyParticipants(ctx, snapshot, models.NotificationReschedule)
	s.logger.Info("meeting rescheduled",
		zap.String("meeting_id", m.ID.String()),
		zap.String("date", m.Day().String()),
		zap.String("start", m.StartTime),
		zap.String("end", m.EndTime),
	)
	s.publish(m.ID, EventRescheduled, snapshot)
	return &ChangeResult{Meeting: snapshot, Count: len(results), Results: results}, nil
}

// Delete notifies every participant of the cancellation, then removes the meeting.
func (s *Service) Delete(ctx context.Context, meetingID uuid.UUID, actor models.Role) (*ChangeResult, error) {
	if !actor.Can(models.ActionDeleteMeeting) {
		return nil, ErrUnauthorized
	}
	unlock, err := s.lock(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	results := s.notifyParticipants(ctx, m.Clone(), models.NotificationCancel)
	if err := s.store.Delete(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("delete meeting: %w", err)
	}
	s.logger.Info("meeting deleted", zap.String("meeting_id", m.ID.String()), zap.Int("notified", len(results)))
	s.publish(m.ID, EventCancelled, map[string]interface{}{"id": m.ID})
	return &ChangeResult{Count: len(results), Results: results}, nil
}

// notifyParticipants sends kind to every current participant. Participants whose user record
// is gone, or who could not be looked up, are reported as failed.
func (s *Service) notifyParticipants(ctx context.Context, m *models.Meeting, kind models.NotificationType) []RecipientResult {
	ids := m.ParticipantIDs()
	if len(ids) == 0 {
		return []RecipientResult{}
	}
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("find participants failed", zap.Error(err), zap.String("meeting_id", m.ID.String()))
		results := make([]RecipientResult, len(ids))
		for i, id := range ids {
			results[i] = RecipientResult{UserID: id, Status: RecipientFailed, Error: "find participants: " + err.Error()}
		}
		return results
	}
	byID := make(map[uuid.UUID]*models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	results := make([]RecipientResult, len(ids))
	var sends []delivery
	for i, id := range ids {
		u, ok := byID[id]
		if !ok {
			results[i] = RecipientResult{UserID: id, Status: RecipientFailed, Error: "participant not found"}
			continue
		}
		sends = append(sends, delivery{index: i, user: u})
	}
	s.fanOut(ctx, sends, results, func(ctx context.Context, u *models.User) error {
		return s.notifier.Send(ctx, u, kind, m, models.NotificationExtra{})
	})
	return results
}

func (s *Service) notifyAll(ctx context.Context, users []*models.User, kind models.NotificationType, m *models.Meeting) []RecipientResult {
	results := make([]RecipientResult, len(users))
	sends := make([]delivery, len(users))
	for i, u := range users {
		sends[i] = delivery{index: i, user: u}
	}
	s.fanOut(ctx, sends, results, func(ctx context.Context, u *models.User) error {
		return s.notifier.Send(ctx, u, kind, m, models.NotificationExtra{})
	})
	return results
}

// resolve looks up ids in input order, dropping unknown users and those keep rejects.
func (s *Service) resolve(ctx context.Context, ids []uuid.UUID, keep func(*models.User) bool) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	byID := make(map[uuid.UUID]*models.User, len(found))
	for _, u := range found {
		if keep == nil || keep(u) {
			byID[u.ID] = u
		}
	}
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Service) lock(ctx context.Context, meetingID uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "meeting:"+meetingID.String())
	if err != nil {
		return nil, fmt.Errorf("lock meeting: %w", err)
	}
	return unlock, nil
}

func (s *Service) publish(id uuid.UUID, event string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.PublishMeetingEvent(id, event, payload)
	}
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
