package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/levelup-events/backend/internal/models"
)

const registrationColumns = `id, event_id, first_name, last_name, corp_email, corp_sid, personal_email, github_username, status, created_at, updated_at`

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a registration with its pre-decided initial status.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (id, event_id, first_name, last_name, corp_email, corp_sid, personal_email, github_username, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		reg.EventID, reg.FirstName, reg.LastName, reg.CorpEmail, reg.CorpSID, reg.PersonalEmail, reg.GithubUsername, reg.Status).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return reg, err
}

// FindActive returns the non-cancelled registration for event+corp email, or
// nil when there is none.
func (r *Repository) FindActive(ctx context.Context, eventID uuid.UUID, corpEmail string) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = $1 AND corp_email = $2 AND status <> $3
		LIMIT 1`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, eventID, corpEmail, models.StatusCancelled))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// ListByEvent returns all registrations for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// UpdateAttendee overwrites attendee fields; event and status are untouched.
func (r *Repository) UpdateAttendee(ctx context.Context, reg *models.Registration) error {
	const q = `UPDATE registrations
		SET first_name = $2, last_name = $3, corp_email = $4, corp_sid = $5, personal_email = $6, github_username = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q,
		reg.ID, reg.FirstName, reg.LastName, reg.CorpEmail, reg.CorpSID, reg.PersonalEmail, reg.GithubUsername).
		Scan(&reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// TransitionStatus performs the conditional status write. The WHERE clause
// re-checks the transition table against the stored row, so the update is a
// compare-and-set: a single-row UPDATE is atomic and the condition is
// evaluated at write time. Zero rows affected with the row present means the
// stored status moved first; that maps to ErrConditionFailed, which callers
// treat as an expected rejection, never as an infrastructure error.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, target models.Status) error {
	sources := models.TransitionSources(target)
	allowed := make([]string, 0, len(sources))
	for _, s := range sources {
		allowed = append(allowed, string(s))
	}
	const q = `UPDATE registrations SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`
	tag, err := r.pool.Exec(ctx, q, id, target, allowed)
	if err != nil {
		return fmt.Errorf("conditional status update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// Condition not met, or no such row. Disambiguate.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("conditional status update: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConditionFailed
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.FirstName, &reg.LastName, &reg.CorpEmail, &reg.CorpSID,
		&reg.PersonalEmail, &reg.GithubUsername, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
