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

package http

import (
	"context"

	"github.com/dealerhub/admingate/internal/authz"
	"github.com/dealerhub/admingate/internal/session"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	recordKey    contextKey = "authz_record"
)

func withAuth(ctx context.Context, p session.Principal, rec *authz.Record) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	if rec != nil {
		ctx = context.WithValue(ctx, recordKey, *rec)
	}
	return ctx
}

// GetPrincipal retrieves the verified principal from context.
func GetPrincipal(ctx context.Context) session.Principal {
	if val, ok := ctx.Value(principalKey).(session.Principal); ok {
		return val
	}
	return session.Anonymous
}

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	return GetPrincipal(ctx).ID
}

// GetRecord retrieves the authorization record the request was admitted with.
func GetRecord(ctx context.Context) (authz.Record, bool) {
	val, ok := ctx.Value(recordKey).(authz.Record)
	return val, ok
}
