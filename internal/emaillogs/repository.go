package emaillogs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classmeet/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const logColumns = `id, meeting_id, user_id, email_type, recipient_email, COALESCE(subject,''), COALESCE(body_html,''),
	status, attempts, sent_at, COALESCE(error_message,''), created_at`

func scanLog(row pgx.Row) (*models.EmailLog, error) {
	var el models.EmailLog
	var kind string
	if err := row.Scan(&el.ID, &el.MeetingID, &el.UserID, &kind, &el.RecipientEmail, &el.Subject, &el.BodyHTML,
		&el.Status, &el.Attempts, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
		return nil, err
	}
	el.EmailType = models.NotificationType(kind)
	return &el, nil
}

// Create records a pending delivery attempt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (id, meeting_id, user_id, email_type, recipient_email, subject, body_html, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	status := el.Status
	if status == "" {
		status = models.EmailLogStatusPending
	}
	return r.pool.QueryRow(ctx, q, el.MeetingID, el.UserID, string(el.EmailType), el.RecipientEmail, el.Subject, el.BodyHTML, status).
		Scan(&el.ID, &el.CreatedAt)
}

// GetByID returns a log, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	el, err := scanLog(r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM email_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return el, err
}

// MarkSent records a successful attempt.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE email_logs SET status = $1, attempts = attempts + 1, sent_at = NOW(), error_message = NULL WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, models.EmailLogStatusSent, id)
	return err
}

// MarkFailed records a failed attempt with its reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE email_logs SET status = $1, attempts = attempts + 1, error_message = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.EmailLogStatusFailed, reason, id)
	return err
}

// ListByMeeting returns email logs for a meeting, newest first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+logColumns+` FROM email_logs WHERE meeting_id = $1 ORDER BY created_at DESC`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		el, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}

// CountByStatus returns totals keyed by status across all meetings.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM email_logs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
