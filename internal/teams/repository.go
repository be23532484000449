package teams

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/levelup-events/backend/internal/models"
)

// ErrTableTaken means the table number already belongs to another team.
var ErrTableTaken = errors.New("table number already taken")

// Repository handles hackathon team persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a teams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a team. The table number is the primary key; a second team
// claiming the same table is rejected with ErrTableTaken.
func (r *Repository) Create(ctx context.Context, t *models.Team) error {
	const q = `INSERT INTO teams (team_number, name, num_members, tech_stack, repo_url, env_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (team_number) DO NOTHING
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, q, t.TeamNumber, t.Name, t.NumMembers, t.TechStack, t.RepoURL, t.EnvURL).
		Scan(&t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTableTaken
	}
	return err
}

// List returns all teams ordered by table number.
func (r *Repository) List(ctx context.Context) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT team_number, name, num_members, tech_stack, repo_url, env_url, created_at FROM teams ORDER BY team_number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.TeamNumber, &t.Name, &t.NumMembers, &t.TechStack, &t.RepoURL, &t.EnvURL, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
