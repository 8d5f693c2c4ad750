// Copyright 2026 The Admingate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SiteSettingsRepository implements settings.Repository on the site_settings table.
type SiteSettingsRepository struct {
	db *DB
}

// NewSiteSettingsRepository creates a new site settings repository
func NewSiteSettingsRepository(db *DB) *SiteSettingsRepository {
	return &SiteSettingsRepository{db: db}
}

// List returns every stored setting.
func (r *SiteSettingsRepository) List(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT key, value FROM site_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	out := make(map[string]bool)
	var (
		key   string
		value bool
	)
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		out[key] = value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}
	return out, nil
}

// Upsert stores a setting and records who changed it.
func (r *SiteSettingsRepository) Upsert(ctx context.Context, key string, value bool, updatedBy string) error {
	err := r.db.WithElevated(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO site_settings (key, value, updated_by, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value,
				updated_by = EXCLUDED.updated_by,
				updated_at = EXCLUDED.updated_at
		`, key, value, updatedBy)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}
