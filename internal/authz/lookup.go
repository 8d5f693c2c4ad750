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

package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dealerhub/admingate/internal/observability/logger"
)

// Repository reads authorization records. Implementations must bypass
// row-level security: this lookup decides whether those policies apply.
type Repository interface {
	// GetByID returns ErrRecordNotFound when no row exists.
	GetByID(ctx context.Context, userID string) (*Record, error)
}

// Lookuper resolves a principal to its authorization record.
type Lookuper interface {
	Lookup(ctx context.Context, principalID string) (Record, bool)
}

// Service is the store-backed Lookuper.
type Service struct {
	repo Repository
}

// NewService creates a new authorization lookup service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lookup returns the record for principalID. Absence and store failures both
// return false; they differ only in the logged reason.
func (s *Service) Lookup(ctx context.Context, principalID string) (Record, bool) {
	if _, err := uuid.Parse(principalID); err != nil {
		slog.WarnContext(ctx, "authorization lookup skipped",
			logger.Component("authz"), logger.UserID(principalID), logger.Reason("malformed_principal"))
		return Record{}, false
	}

	rec, err := s.repo.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			slog.InfoContext(ctx, "no authorization record",
				logger.Component("authz"), logger.UserID(principalID), logger.Reason("not_found"))
		} else {
			slog.ErrorContext(ctx, "authorization lookup failed",
				logger.Component("authz"), logger.UserID(principalID), logger.Reason("store_error"), logger.Error(err))
		}
		return Record{}, false
	}
	return *rec, true
}
