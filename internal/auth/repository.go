package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classmeet/backend/internal/models"
)

// ErrUserNotFound is returned when no user matches.
var ErrUserNotFound = errors.New("user not found")

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, COALESCE(phone_number,''), role,
	onboarding_credential, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.PhoneNumber, &role,
		&u.OnboardingCredential, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email, matched case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// FindByIDs returns the users with the given ids; unknown ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, id.String())
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, strs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// ClaimOnboardingCredential clears the undelivered first-login password and returns it, or ""
// when none is pending. Concurrent claims for one user see the credential at most once.
func (r *Repository) ClaimOnboardingCredential(ctx context.Context, userID uuid.UUID) (string, error) {
	const q = `UPDATE users u SET onboarding_credential = NULL, updated_at = NOW()
		FROM (SELECT id, onboarding_credential FROM users WHERE id = $1 AND onboarding_credential IS NOT NULL FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.onboarding_credential`
	var credential string
	err := r.pool.QueryRow(ctx, q, userID).Scan(&credential)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return credential, nil
}

// RestoreOnboardingCredential puts back a claimed credential whose delivery failed. A credential
// claimed again in the meantime is left alone.
func (r *Repository) RestoreOnboardingCredential(ctx context.Context, userID uuid.UUID, credential string) error {
	const q = `UPDATE users SET onboarding_credential = $2, updated_at = NOW()
		WHERE id = $1 AND onboarding_credential IS NULL`
	_, err := r.pool.Exec(ctx, q, userID, credential)
	return err
}

// ListParams filters List.
type ListParams struct {
	Roles  []models.Role
	Search string
}

// List returns users in the given roles, optionally matching search against names, email,
// phone number and role.
func (r *Repository) List(ctx context.Context, p ListParams) ([]models.UserPublic, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	var args []interface{}
	var conds []string
	if len(p.Roles) > 0 {
		roles := make([]string, 0, len(p.Roles))
		for _, role := range p.Roles {
			roles = append(roles, string(role))
		}
		args = append(args, roles)
		conds = append(conds, "role = ANY($"+strconv.Itoa(len(args))+"::text[])")
	}
	if p.Search != "" {
		args = append(args, "%"+p.Search+"%")
		n := "$" + strconv.Itoa(len(args))
		conds = append(conds, "(first_name ILIKE "+n+" OR last_name ILIKE "+n+" OR email ILIKE "+n+
			" OR phone_number ILIKE "+n+" OR role ILIKE "+n+")")
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	rows, err := r.pool.Query(ctx, q+" ORDER BY first_name, last_name, email", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u.ToPublic())
	}
	return list, rows.Err()
}

// Create inserts a new user and fills in its id and timestamps.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, password_hash, first_name, last_name, phone_number, role, onboarding_credential)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, u.Email, u.Password, u.FirstName, u.LastName, u.PhoneNumber, string(u.Role), u.OnboardingCredential).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// Update stores profile and role changes.
func (r *Repository) Update(ctx context.Context, u *models.User) error {
	const q = `UPDATE users SET email = $1, first_name = $2, last_name = $3, phone_number = NULLIF($4,''), role = $5, updated_at = NOW()
		WHERE id = $6 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, u.Email, u.FirstName, u.LastName, u.PhoneNumber, string(u.Role), u.ID).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

// Delete removes a user; their meeting participations cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
