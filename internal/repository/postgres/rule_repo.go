package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/dlp-guard/internal/domain"
)

func (r *Repo) ListDetectionRules(ctx context.Context) ([]domain.DetectionRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, entity_type, is_active, created_at, updated_at
		FROM detection_rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list detection rules: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DetectionRule, 0)
	for rows.Next() {
		var d domain.DetectionRule
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.EntityType, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan detection rule: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDetectionRuleActive включает или выключает правило.
func (r *Repo) SetDetectionRuleActive(ctx context.Context, id int64, active bool) (*domain.DetectionRule, error) {
	query := `
		UPDATE detection_rules SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, name, description, entity_type, is_active, created_at, updated_at`

	var d domain.DetectionRule
	err := r.pool.QueryRow(ctx, query, active, id).Scan(
		&d.ID, &d.Name, &d.Description, &d.EntityType, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "detection rule", id, "update detection rule")
	}
	return &d, nil
}
