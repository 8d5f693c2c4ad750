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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dealerhub/admingate/internal/authz"
)

// AdminUserRepository implements authz.Repository on the admin_users table.
type AdminUserRepository struct {
	db *DB
}

// NewAdminUserRepository creates a new admin user repository
func NewAdminUserRepository(db *DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// GetByID reads the role and active flag of an admin user.
func (r *AdminUserRepository) GetByID(ctx context.Context, id string) (*authz.Record, error) {
	var (
		role     string
		isActive bool
	)

	err := r.db.WithElevated(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT role, is_active
			FROM admin_users
			WHERE id = $1
		`, id).Scan(&role, &isActive)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}

	return &authz.Record{
		UserID:   id,
		Role:     authz.ParseRole(role),
		IsActive: isActive,
	}, nil
}

// TouchLastLogin stamps last_login_at for an active admin user.
func (r *AdminUserRepository) TouchLastLogin(ctx context.Context, id string) error {
	err := r.db.WithElevated(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE admin_users
			SET last_login_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND is_active
		`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
