package postgres

/*
Политики меток определяют реакцию шлюза на найденную сущность (BLOCK/ALLOW).
База хранит их долговременно, шлюз держит копию в памяти и перечитывает по сигналу из Redis.
*/

import (
	"context"
	"fmt"

	"github.com/xela07ax/dlp-guard/internal/domain"
)

// ListLabelPolicies выполняет «холодную загрузку» всех политик, упорядоченных по метке.
func (r *Repo) ListLabelPolicies(ctx context.Context) ([]domain.LabelPolicy, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, label, block, updated_by, updated_at FROM label_policies ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list label policies: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LabelPolicy, 0)
	for rows.Next() {
		var p domain.LabelPolicy
		if err := rows.Scan(&p.ID, &p.Label, &p.Block, &p.UpdatedBy, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan label policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertLabelPolicy создаёт политику или обновляет существующую по метке.
func (r *Repo) UpsertLabelPolicy(ctx context.Context, label string, in domain.LabelPolicyUpdate) (*domain.LabelPolicy, error) {
	query := `
		INSERT INTO label_policies (label, block, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (label) DO UPDATE
		SET block = EXCLUDED.block, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING id, label, block, updated_by, updated_at`

	var p domain.LabelPolicy
	err := r.pool.QueryRow(ctx, query, label, in.Block, in.UpdatedBy).Scan(
		&p.ID, &p.Label, &p.Block, &p.UpdatedBy, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: upsert label policy: %w", err)
	}
	return &p, nil
}
