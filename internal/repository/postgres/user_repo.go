package postgres

import (
	"context"

	"github.com/xela07ax/dlp-guard/internal/domain"
)

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, email, password_hash, is_active, is_superuser, created_at
		FROM users WHERE username = $1`

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.CreatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "user", username, "get user")
	}
	return u, nil
}
