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
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dealerhub/admingate/internal/audit"
	"github.com/dealerhub/admingate/internal/authz"
	"github.com/dealerhub/admingate/internal/csrf"
	"github.com/dealerhub/admingate/internal/observability/logger"
	"github.com/dealerhub/admingate/internal/policy"
	"github.com/dealerhub/admingate/internal/session"
)

// reasonCancelled marks a decision forced by the request context ending.
const reasonCancelled = "cancelled"

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Gate guards the admin pages. Every request under the protected prefix is
// verified, looked up and decided before next sees it. Cookie rewrites from
// verification reach the client on every branch, redirects included.
func (h *Handler) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if !h.engine.RequiresAuth(p) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		res := h.verifier.Verify(ctx, r)
		res.Apply(w)

		rec := h.lookupRecord(ctx, res.Principal)

		var d policy.Decision
		if ctx.Err() != nil {
			d = policy.Decision{
				Outcome:  policy.RedirectLogin,
				Location: h.engine.Routes().LoginPath,
				Reason:   reasonCancelled,
			}
		} else {
			d = h.engine.Decide(p, res.Principal, rec)
		}
		h.metrics.RecordDecision(ctx, d.Outcome.String(), d.Reason)

		if d.Outcome == policy.Allow {
			next.ServeHTTP(w, r.WithContext(withAuth(ctx, res.Principal, rec)))
			return
		}

		h.logDenial(r, res.Principal, rec, d)
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, d.Location, http.StatusFound)
	})
}

// APIAuth guards the admin JSON API. It applies the same verification and
// lookup as Gate but answers 401/403 instead of redirecting.
func (h *Handler) APIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res := h.verifier.Verify(ctx, r)
		res.Apply(w)

		if res.Principal.IsAnonymous() {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		rec := h.lookupRecord(ctx, res.Principal)
		if rec == nil || !rec.IsActive || rec.Role == authz.RoleUnknown {
			d := policy.Decision{Outcome: policy.RedirectLogin, Reason: policy.ReasonNoRecord}
			if rec != nil && !rec.IsActive {
				d.Reason = policy.ReasonInactive
			} else if rec != nil {
				d.Reason = policy.ReasonUnknownRole
			}
			h.logDenial(r, res.Principal, rec, d)
			respondError(w, http.StatusForbidden, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withAuth(ctx, res.Principal, rec)))
	})
}

// CSRFMiddleware rejects state-changing requests whose token does not match
// the CSRF cookie. Safe methods pass through.
func (h *Handler) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !csrf.RequiresCheck(r.Method) || h.csrf.ValidateRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		slog.WarnContext(r.Context(), "csrf token rejected",
			logger.Component("csrf"),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
		)
		h.metrics.RecordCSRFRejection(r.Context(), r.Method)
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeCSRFRejected,
			Resource:  r.URL.Path,
			IPAddress: h.clientIP.ClientIP(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{"method": r.Method},
		})
		respondJSON(w, http.StatusForbidden, map[string]string{
			"error": "Invalid CSRF token",
			"code":  "CSRF_INVALID",
		})
	})
}

// lookupRecord returns nil for anonymous principals and for any lookup failure.
func (h *Handler) lookupRecord(ctx context.Context, p session.Principal) *authz.Record {
	if p.IsAnonymous() || ctx.Err() != nil {
		return nil
	}

	start := time.Now()
	rec, ok := h.lookup.Lookup(ctx, p.ID)
	h.metrics.RecordLookup(ctx, float64(time.Since(start).Microseconds())/1000, ok)
	if !ok {
		return nil
	}
	return &rec
}

func (h *Handler) logDenial(r *http.Request, p session.Principal, rec *authz.Record, d policy.Decision) {
	attrs := []any{
		logger.Component("gate"),
		logger.Decision(d.Outcome.String()),
		logger.Reason(d.Reason),
		logger.Path(r.URL.Path),
	}
	if d.Location != "" {
		attrs = append(attrs, logger.Location(d.Location))
	}
	if rec != nil {
		attrs = append(attrs, logger.Role(rec.Role.String()))
	}

	if p.IsAnonymous() {
		slog.DebugContext(r.Context(), "gate redirect", attrs...)
		return
	}

	slog.InfoContext(r.Context(), "gate denied", append(attrs, logger.UserID(p.ID))...)
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAccessDenied,
		ActorID:   p.ID,
		Resource:  r.URL.Path,
		IPAddress: h.clientIP.ClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"reason": d.Reason, "outcome": d.Outcome.String()},
	})
}
