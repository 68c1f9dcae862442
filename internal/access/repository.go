package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classmeet/backend/internal/models"
)

// Repository handles meeting_access_links persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an access link repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const linkColumns = `id, meeting_id, user_id, token, expires_at, used_at, created_at`

func scanLink(row pgx.Row) (*models.AccessLink, error) {
	var l models.AccessLink
	err := row.Scan(&l.ID, &l.MeetingID, &l.UserID, &l.Token, &l.ExpiresAt, &l.UsedAt, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a link and fills in its id and created_at.
func (r *Repository) Create(ctx context.Context, l *models.AccessLink) error {
	const q = `INSERT INTO meeting_access_links (id, meeting_id, user_id, token, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.MeetingID, l.UserID, l.Token, l.ExpiresAt).Scan(&l.ID, &l.CreatedAt)
}

// GetByToken returns the link for token, or nil if unknown.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.AccessLink, error) {
	return scanLink(r.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM meeting_access_links WHERE token = $1`, token))
}

// MarkUsed consumes the link. It reports false when the link was already used.
func (r *Repository) MarkUsed(ctx context.Context, l *models.AccessLink) (bool, error) {
	const q = `UPDATE meeting_access_links SET used_at = NOW() WHERE id = $1 AND used_at IS NULL RETURNING used_at`
	err := r.pool.QueryRow(ctx, q, l.ID).Scan(&l.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
