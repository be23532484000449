package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/levelup-events/backend/internal/models"
)

// ErrNotFound means no event exists with the given ID.
var ErrNotFound = errors.New("event not found")

const (
	eventColumns = `id, name, description, location, ics_file_location, num_seats, start_date, end_date, local_time_zone, status, created_at, updated_at`

	openEventsCacheKey = "cache:events:open"
	openEventsCacheTTL = 30 * time.Second
)

// Repository handles event persistence with a Redis cache in front of the
// open-events listing (the public landing page query).
type Repository struct {
	pool  *pgxpool.Pool
	cache *redis.Client // nil disables caching
}

// NewRepository creates an events repository. cache may be nil.
func NewRepository(pool *pgxpool.Pool, cache *redis.Client) *Repository {
	return &Repository{pool: pool, cache: cache}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, name, description, location, ics_file_location, num_seats, start_date, end_date, local_time_zone, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q,
		e.Name, e.Description, e.Location, e.ICSFileLocation, e.NumSeats, e.StartDate, e.EndDate, e.LocalTimeZone, e.Status).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// List returns all events, soonest first.
func (r *Repository) List(ctx context.Context) ([]models.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date ASC`)
}

// ListOpen returns open events, served from Redis when the cache is warm.
func (r *Repository) ListOpen(ctx context.Context) ([]models.Event, error) {
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, openEventsCacheKey).Bytes(); err == nil {
			var cached []models.Event
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}
	list, err := r.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = $1 ORDER BY start_date ASC`,
		models.EventStatusOpen)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if raw, err := json.Marshal(list); err == nil {
			_ = r.cache.Set(ctx, openEventsCacheKey, raw, openEventsCacheTTL).Err()
		}
	}
	return list, nil
}

// Update overwrites all editable fields of an event.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events
		SET name = $2, description = $3, location = $4, ics_file_location = $5, num_seats = $6, start_date = $7, end_date = $8, local_time_zone = $9, status = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q,
		e.ID, e.Name, e.Description, e.Location, e.ICSFileLocation, e.NumSeats, e.StartDate, e.EndDate, e.LocalTimeZone, e.Status).
		Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// SetInviteLocation stores the S3 key of the event's iCal invite.
func (r *Repository) SetInviteLocation(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET ics_file_location = $2, updated_at = NOW() WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an event. Deletion is unconditional: registrations keep
// their event_id and are not cascaded (matching the admin flows this backend
// replaces; rosters of deleted events stay queryable by ID).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.invalidate(ctx)
	return nil
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

func (r *Repository) invalidate(ctx context.Context) {
	if r.cache != nil {
		_ = r.cache.Del(ctx, openEventsCacheKey).Err()
	}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.ICSFileLocation, &e.NumSeats,
		&e.StartDate, &e.EndDate, &e.LocalTimeZone, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
