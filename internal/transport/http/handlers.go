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
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dealerhub/admingate/internal/audit"
	"github.com/dealerhub/admingate/internal/authz"
	"github.com/dealerhub/admingate/internal/csrf"
	"github.com/dealerhub/admingate/internal/identity"
	"github.com/dealerhub/admingate/internal/observability/logger"
	"github.com/dealerhub/admingate/internal/observability/metrics"
	"github.com/dealerhub/admingate/internal/policy"
	"github.com/dealerhub/admingate/internal/session"
	"github.com/dealerhub/admingate/internal/settings"
)

// SessionVerifier resolves the request's session cookies to a principal.
type SessionVerifier interface {
	Verify(ctx context.Context, r *http.Request) session.Result
	Cookies() session.CookieConfig
}

// Authenticator performs password sign-in against the identity provider.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
}

// LoginRecorder stamps successful admin logins.
type LoginRecorder interface {
	TouchLastLogin(ctx context.Context, id string) error
}

// SettingsStore reads and updates site settings.
type SettingsStore interface {
	Get(ctx context.Context) settings.SiteSettings
	Update(ctx context.Context, key string, value bool, updatedBy string) error
}

// Dependencies are the collaborators of Handler. Metrics and AuditLogger
// may be nil.
type Dependencies struct {
	Verifier      SessionVerifier
	Lookup        authz.Lookuper
	Engine        *policy.Engine
	CSRF          *csrf.Service
	Authenticator Authenticator
	Logins        LoginRecorder
	Settings      SettingsStore
	AuditLogger   audit.Logger
	Metrics       *metrics.GateMetrics
	AdminUI       fs.FS
	// ClientIP attributes requests for rate limiting and audit. Nil means the
	// connection's remote host.
	ClientIP *ClientIPResolver
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	verifier    SessionVerifier
	lookup      authz.Lookuper
	engine      *policy.Engine
	csrf        *csrf.Service
	auth        Authenticator
	logins      LoginRecorder
	settings    SettingsStore
	auditLogger audit.Logger
	metrics     *metrics.GateMetrics
	adminUI     fs.FS
	clientIP    *ClientIPResolver
}

// NewHandler creates a new HTTP handler
func NewHandler(d Dependencies) *Handler {
	h := &Handler{
		verifier:    d.Verifier,
		lookup:      d.Lookup,
		engine:      d.Engine,
		csrf:        d.CSRF,
		auth:        d.Authenticator,
		logins:      d.Logins,
		settings:    d.Settings,
		auditLogger: d.AuditLogger,
		metrics:     d.Metrics,
		adminUI:     d.AdminUI,
		clientIP:    d.ClientIP,
	}
	if h.auditLogger == nil {
		h.auditLogger = audit.NewSlogLogger(nil)
	}
	if h.engine == nil {
		h.engine = policy.NewEngine(policy.DefaultRoutes())
	}
	return h
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.CleanPath)
	r.Use(RateLimitMiddleware(rateLimiter, h.clientIP))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", h.CSRFToken)
		r.Get("/settings", h.GetSettings)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.CSRFMiddleware)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(h.APIAuth)
				r.Get("/me", h.GetCurrentUser)
				r.Patch("/settings", h.UpdateSettings)
			})
		})
	})

	prefix := h.engine.Routes().ProtectedPrefix
	spa := http.StripPrefix(prefix, SPAHandler{StaticFS: h.adminUI})
	r.Group(func(r chi.Router) {
		r.Use(h.Gate)
		r.Handle(prefix, spa)
		r.Handle(prefix+"/*", spa)
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "admingate",
	})
}

// CSRFToken issues the caller's CSRF token.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.Issue(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue csrf token", logger.Component("csrf"), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to generate csrf token")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs an admin user in. Credentials valid at the identity provider
// are not enough: the user must also hold an active admin record, otherwise
// the provider session is ended again.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx := r.Context()
	tokens, err := h.auth.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.auditLoginFailed(r, req.Email, "invalid_credentials")
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.ErrorContext(ctx, "sign-in failed", logger.Component("login"), logger.Error(err))
		respondError(w, http.StatusServiceUnavailable, "authentication service unavailable")
		return
	}

	rec := h.lookupRecord(ctx, session.Principal{ID: tokens.User.ID, Email: tokens.User.Email})
	if rec == nil || !rec.IsActive || rec.Role == authz.RoleUnknown {
		if err := h.auth.SignOut(ctx, tokens.AccessToken); err != nil {
			slog.WarnContext(ctx, "sign-out after rejected login failed", logger.Component("login"), logger.Error(err))
		}
		h.auditLoginFailed(r, req.Email, "not_authorized")
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	for _, c := range h.verifier.Cookies().SessionCookies(tokens) {
		http.SetCookie(w, c)
	}

	if h.logins != nil {
		if err := h.logins.TouchLastLogin(ctx, rec.UserID); err != nil {
			slog.WarnContext(ctx, "failed to record last login", logger.Component("login"), logger.Error(err))
		}
	}

	slog.InfoContext(ctx, "admin login",
		logger.Component("login"),
		logger.UserID(rec.UserID),
		logger.Role(rec.Role.String()),
	)
	h.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeLoginSuccess,
		ActorID:   rec.UserID,
		Resource:  "session",
		IPAddress: h.clientIP.ClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"role": rec.Role.String()},
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"user": map[string]string{
			"id":    rec.UserID,
			"email": tokens.User.Email,
			"role":  rec.Role.String(),
		},
		"redirect": h.homeFor(rec.Role),
	})
}

// Logout ends the provider session when one is present and always clears
// the session cookies.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookies := h.verifier.Cookies()
	if c, err := r.Cookie(cookies.AccessName); err == nil && c.Value != "" {
		if err := h.auth.SignOut(r.Context(), c.Value); err != nil {
			slog.WarnContext(r.Context(), "provider sign-out failed", logger.Component("logout"), logger.Error(err))
		}
	}

	for _, c := range cookies.ClearCookies() {
		http.SetCookie(w, c)
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLogout,
		Resource:  "session",
		IPAddress: h.clientIP.ClientIP(r),
		UserAgent: r.UserAgent(),
	})

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// GetCurrentUser returns the authenticated admin user.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	rec, _ := GetRecord(r.Context())

	respondJSON(w, http.StatusOK, map[string]any{
		"id":        p.ID,
		"email":     p.Email,
		"role":      rec.Role.String(),
		"is_active": rec.IsActive,
		"home":      h.homeFor(rec.Role),
	})
}

// GetSettings returns the public site settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.settings.Get(r.Context()))
}

// UpdateSettingRequest changes one site setting.
type UpdateSettingRequest struct {
	Key   string `json:"key"`
	Value *bool  `json:"value"`
}

// UpdateSettings changes a site setting. Admins only.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, _ := GetRecord(ctx)
	if rec.Role != authz.RoleAdmin {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.settings.Update(ctx, req.Key, *req.Value, rec.UserID); err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			respondError(w, http.StatusBadRequest, "invalid setting key")
			return
		}
		slog.ErrorContext(ctx, "failed to update setting",
			logger.Component("settings"),
			logger.String("key", req.Key),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "failed to update setting")
		return
	}

	h.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeSettingsUpdated,
		ActorID:   rec.UserID,
		Resource:  "site_settings",
		IPAddress: h.clientIP.ClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"setting": req.Key, "value": *req.Value},
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": h.settings.Get(ctx),
	})
}

func (h *Handler) homeFor(role authz.Role) string {
	if role == authz.RoleManager {
		return h.engine.Routes().ManagerHome
	}
	return h.engine.Routes().ProtectedPrefix
}

func (h *Handler) auditLoginFailed(r *http.Request, email, reason string) {
	slog.InfoContext(r.Context(), "admin login rejected",
		logger.Component("login"),
		logger.Email(email),
		logger.Reason(reason),
	)
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLoginFailed,
		Resource:  email,
		IPAddress: h.clientIP.ClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"reason": reason},
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
