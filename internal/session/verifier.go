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

package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"

	"github.com/dealerhub/admingate/internal/identity"
	"github.com/dealerhub/admingate/internal/observability/logger"
)

// Verifier checks request cookies against the identity provider.
type Verifier struct {
	provider      Provider
	cookies       CookieConfig
	refreshMargin time.Duration
	clock         abtime.AbstractTime
	parser        *jwt.Parser
}

// NewVerifier creates a verifier. Access tokens expiring within refreshMargin
// are renewed ahead of time when a refresh token is available.
func NewVerifier(provider Provider, cookies CookieConfig, refreshMargin time.Duration, clock abtime.AbstractTime) *Verifier {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &Verifier{
		provider:      provider,
		cookies:       cookies,
		refreshMargin: refreshMargin,
		clock:         clock,
		parser:        jwt.NewParser(),
	}
}

// Cookies returns the cookie configuration used by the verifier.
func (v *Verifier) Cookies() CookieConfig {
	return v.cookies
}

// Verify resolves the session carried by r. Every failure, whatever its cause,
// yields the anonymous principal; the cause is only logged.
func (v *Verifier) Verify(ctx context.Context, r *http.Request) Result {
	access := cookieValue(r, v.cookies.AccessName)
	refresh := cookieValue(r, v.cookies.RefreshName)
	if access == "" && refresh == "" {
		return Result{}
	}

	if access != "" && (refresh == "" || !v.needsRefresh(access)) {
		user, err := v.provider.GetUser(ctx, access)
		if err == nil {
			return Result{
				Principal: Principal{ID: user.ID, Email: user.Email},
				Cookies:   v.cookies.reissue(access, refresh),
			}
		}
		if !errors.Is(err, identity.ErrInvalidToken) || ctx.Err() != nil {
			// outage or cancellation: deny, but keep the client's cookies
			slog.ErrorContext(ctx, "session verification failed",
				logger.Component("session"), logger.Reason("provider_error"), logger.Error(err))
			return Result{}
		}
		slog.DebugContext(ctx, "access token rejected", logger.Component("session"))
	}

	if refresh == "" {
		return Result{Cookies: v.cookies.ClearCookies()}
	}

	tokens, err := v.provider.Refresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) && ctx.Err() == nil {
			slog.InfoContext(ctx, "refresh token rejected",
				logger.Component("session"), logger.Reason("refresh_rejected"))
			return Result{Cookies: v.cookies.ClearCookies()}
		}
		slog.ErrorContext(ctx, "session refresh failed",
			logger.Component("session"), logger.Reason("provider_error"), logger.Error(err))
		return Result{}
	}

	return Result{
		Principal: Principal{ID: tokens.User.ID, Email: tokens.User.Email},
		Cookies:   v.cookies.SessionCookies(tokens),
	}
}

// needsRefresh reads the unverified exp claim. The provider stays authoritative
// for validity; this only decides whether to rotate before asking it.
func (v *Verifier) needsRefresh(access string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := v.parser.ParseUnverified(access, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(v.clock.Now()) <= v.refreshMargin
}
