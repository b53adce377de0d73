package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/dlp-guard/internal/domain"
)

const projectColumns = `id, name, description, owner, status, total_detections, blocked_count, created_at, updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	p := &domain.Project{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Owner, &p.Status,
		&p.TotalDetections, &p.BlockedCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list projects: %w", err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
	out := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "project", id, "get project")
	}
	return p, nil
}

// CreateProject вставляет проект. Занятое имя - domain.ErrConflict.
func (r *Repo) CreateProject(ctx context.Context, in domain.ProjectCreate) (*domain.Project, error) {
	query := `
		INSERT INTO projects (name, description, owner, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + projectColumns

	p, err := scanProject(r.pool.QueryRow(ctx, query, in.Name, in.Description, in.Owner, in.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict("project with name %q already exists", in.Name)
		}
		return nil, fmt.Errorf("postgres: create project: %w", err)
	}
	return p, nil
}

// UpdateProject сохраняет все изменяемые поля уже обновлённого проекта.
func (r *Repo) UpdateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	query := `
		UPDATE projects
		SET name = $1, description = $2, owner = $3, status = $4,
		    total_detections = $5, blocked_count = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING ` + projectColumns

	updated, err := scanProject(r.pool.QueryRow(ctx, query,
		p.Name, p.Description, p.Owner, p.Status, p.TotalDetections, p.BlockedCount, p.ID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict("project with name %q already exists", p.Name)
		}
		return nil, notFoundOr(err, "project", p.ID, "update project")
	}
	return updated, nil
}

func (r *Repo) DeleteProject(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete project: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.NotFound("project", id)
	}
	return nil
}
