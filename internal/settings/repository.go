package settings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirku/kasirku/internal/shared"
)

// RepositoryPort defines data access for settings.
type RepositoryPort interface {
	List(ctx context.Context, category string, publicOnly bool) ([]Setting, error)
	Get(ctx context.Context, key string) (Setting, error)
	Upsert(ctx context.Context, s Setting) (Setting, error)
	Delete(ctx context.Context, key string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const settingColumns = `key, value, category, COALESCE(description, ''), COALESCE(is_public, FALSE),
	COALESCE(updated_by::text, ''), updated_at`

func scanSetting(row pgx.Row) (Setting, error) {
	var s Setting
	var value []byte
	if err := row.Scan(&s.Key, &value, &s.Category, &s.Description, &s.IsPublic, &s.UpdatedBy, &s.UpdatedAt); err != nil {
		return Setting{}, err
	}
	s.Value = value
	return s, nil
}

func (r *Repository) List(ctx context.Context, category string, publicOnly bool) ([]Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+settingColumns+` FROM settings
		WHERE ($1 = '' OR category = $1) AND (NOT $2 OR is_public)
		ORDER BY category, key`, category, publicOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, key string) (Setting, error) {
	s, err := scanSetting(r.pool.QueryRow(ctx, `SELECT `+settingColumns+` FROM settings WHERE key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Setting{}, shared.ErrNotFound
	}
	return s, err
}

func (r *Repository) Upsert(ctx context.Context, s Setting) (Setting, error) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	var updatedBy any
	if s.UpdatedBy != "" {
		updatedBy = s.UpdatedBy
	}
	return scanSetting(r.pool.QueryRow(ctx, `INSERT INTO settings (key, value, category, description, is_public, updated_by, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			is_public = EXCLUDED.is_public,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
		RETURNING `+settingColumns,
		s.Key, []byte(s.Value), s.Category, s.Description, s.IsPublic, updatedBy, s.UpdatedAt))
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
