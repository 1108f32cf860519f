package project

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the project and enrolls the owner as its first member.
func (r *Repository) Create(ctx context.Context, name string, ownerID int) (*Project, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p := &Project{Name: name, OwnerID: ownerID}
	err = tx.QueryRow(ctx,
		`INSERT INTO projects (name, owner_id) VALUES ($1, $2) RETURNING id, created_at`,
		name, ownerID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)`,
		p.ID, ownerID)
	if err != nil {
		return nil, err
	}

	return p, tx.Commit(ctx)
}

func (r *Repository) AddMember(ctx context.Context, projectID, userID int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)
         ON CONFLICT DO NOTHING`,
		projectID, userID)
	return err
}

func (r *Repository) IsMember(ctx context.Context, projectID, userID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
            SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2
         )`,
		projectID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) ListForUser(ctx context.Context, userID int) ([]Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.owner_id, p.created_at
         FROM projects p
         JOIN project_members pm ON pm.project_id = p.id
         WHERE pm.user_id = $1
         ORDER BY p.created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
