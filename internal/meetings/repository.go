package meetings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/internal/schedule"
)

// Repository handles meeting and participant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const meetingColumns = `id, class_name, meeting_date, start_time, end_time, duration, delete_at, created_at, updated_at`

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	if err := row.Scan(&m.ID, &m.ClassName, &m.Date, &m.StartTime, &m.EndTime, &m.Duration, &m.DeleteAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Participants = []models.Participant{}
	return &m, nil
}

// Find returns a meeting with its participants, or nil if absent.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, []*models.Meeting{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// FindMany returns meetings matching f ordered by date, then creation time.
func (r *Repository) FindMany(ctx context.Context, f Filter) ([]*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings`
	var args []interface{}
	var conds []string
	if f.DeleteBefore != nil {
		args = append(args, *f.DeleteBefore)
		conds = append(conds, "delete_at <= $"+strconv.Itoa(len(args)))
	}
	if f.ParticipantID != nil {
		args = append(args, *f.ParticipantID)
		conds = append(conds, "id IN (SELECT meeting_id FROM meeting_participants WHERE user_id = $"+strconv.Itoa(len(args))+")")
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	rows, err := r.pool.Query(ctx, q+" ORDER BY meeting_date, created_at", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repository) loadParticipants(ctx context.Context, list []*models.Meeting) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Meeting, len(list))
	ids := make([]string, 0, len(list))
	for _, m := range list {
		byID[m.ID] = m
		ids = append(ids, m.ID.String())
	}
	const q = `SELECT meeting_id, user_id, added_at FROM meeting_participants
		WHERE meeting_id = ANY($1::uuid[]) ORDER BY seq`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var meetingID uuid.UUID
		var p models.Participant
		if err := rows.Scan(&meetingID, &p.UserID, &p.AddedAt); err != nil {
			return err
		}
		if m, ok := byID[meetingID]; ok {
			m.Participants = append(m.Participants, p)
		}
	}
	return rows.Err()
}

// Save upserts the meeting row and replaces its participant set in one transaction.
func (r *Repository) Save(ctx context.Context, m *models.Meeting) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const upsert = `INSERT INTO meetings (id, class_name, meeting_date, start_time, end_time, duration, delete_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET class_name = EXCLUDED.class_name, meeting_date = EXCLUDED.meeting_date,
				start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, duration = EXCLUDED.duration,
				delete_at = EXCLUDED.delete_at, updated_at = NOW()
			RETURNING created_at, updated_at`
		if err := tx.QueryRow(ctx, upsert, m.ID, m.ClassName, m.Date, m.StartTime, m.EndTime, m.Duration, m.DeleteAt).
			Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
			return err
		}

		keep := make([]string, 0, len(m.Participants))
		for _, p := range m.Participants {
			keep = append(keep, p.UserID.String())
		}
		if _, err := tx.Exec(ctx, `DELETE FROM meeting_participants WHERE meeting_id = $1 AND NOT (user_id = ANY($2::uuid[]))`, m.ID, keep); err != nil {
			return err
		}
		if len(m.Participants) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, p := range m.Participants {
			added := p.AddedAt
			if added.IsZero() {
				added = time.Now()
			}
			batch.Queue(`INSERT INTO meeting_participants (meeting_id, user_id, added_at) VALUES ($1, $2, $3)
				ON CONFLICT (meeting_id, user_id) DO NOTHING`, m.ID, p.UserID, added)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Delete removes a meeting; participants and access links cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	return err
}

// UpdateStatus stores a derived status snapshot for indexing.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status schedule.Status) error {
	const q = `UPDATE meetings SET status = $1, status_synced_at = NOW() WHERE id = $2 AND status IS DISTINCT FROM $1`
	_, err := r.pool.Exec(ctx, q, string(status), id)
	return err
}
