package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/dlp-guard/internal/domain"
)

// GetSettings читает значения по ключам. Отсутствующие ключи просто не попадают в результат.
func (r *Repo) GetSettings(ctx context.Context, keys ...string) ([]domain.SettingValue, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM system_settings WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("postgres: get settings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SettingValue, 0, len(keys))
	for rows.Next() {
		var (
			s   domain.SettingValue
			raw []byte
		)
		if err := rows.Scan(&s.Key, &raw, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan setting: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &s.Value); err != nil {
				return nil, fmt.Errorf("postgres: decode setting %s: %w", s.Key, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSettings сохраняет пачку значений в одной транзакции.
func (r *Repo) UpsertSettings(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settings tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("postgres: encode setting %s: %w", key, err)
		}
		batch.Queue(`
			INSERT INTO system_settings (key, value, updated_at)
			VALUES ($1, $2::jsonb, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			key, string(raw),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: upsert settings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settings: %w", err)
	}
	return nil
}
