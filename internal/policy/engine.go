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

// Package policy holds the static route matrix of the admin area.
//
// Rules are evaluated in a fixed order and the first match wins:
//
//  1. paths outside the protected prefix, the login page and the
//     password-reset pages are public
//  2. anonymous callers go to the login page with a return path
//  3. callers without an active authorization record go to the login page
//     with error=unauthorized
//  4. admins may reach every protected path
//  5. managers may reach the engine-sound area
//  6. managers are steered to the engine-sound area from anywhere else
//  7. any other role goes to the login page
package policy

import (
	"net/url"
	"path"
	"strings"

	"github.com/dealerhub/admingate/internal/authz"
	"github.com/dealerhub/admingate/internal/session"
)

// Outcome is the action the gate takes for a request.
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectRestricted
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectRestricted:
		return "redirect_restricted"
	default:
		return "unknown"
	}
}

// Reasons recorded with each decision, for logs and metrics only.
const (
	ReasonPublic          = "public"
	ReasonAnonymous       = "anonymous"
	ReasonNoRecord        = "no_record"
	ReasonInactive        = "inactive"
	ReasonAdmin           = "admin"
	ReasonManagerArea     = "manager_area"
	ReasonManagerRedirect = "manager_redirect"
	ReasonUnknownRole     = "unknown_role"
)

// Decision is the engine's verdict. Location is set for redirects.
type Decision struct {
	Outcome  Outcome
	Location string
	Reason   string
}

// Routes is the route matrix configuration.
type Routes struct {
	ProtectedPrefix   string
	LoginPath         string
	ResetPasswordPath string
	ManagerHome       string
}

// DefaultRoutes returns the dealership back-office layout.
func DefaultRoutes() Routes {
	return Routes{
		ProtectedPrefix:   "/admin",
		LoginPath:         "/admin/login",
		ResetPasswordPath: "/admin/reset-password",
		ManagerHome:       "/admin/engine-sounds",
	}
}

// Engine evaluates the route matrix. It is immutable and safe for concurrent use.
type Engine struct {
	routes Routes
}

// NewEngine creates an engine for r.
func NewEngine(r Routes) *Engine {
	return &Engine{routes: r}
}

// Routes returns the engine's route configuration.
func (e *Engine) Routes() Routes {
	return e.routes
}

// RequiresAuth reports whether p needs a session at all. The gate uses it to
// skip every network call for public paths.
func (e *Engine) RequiresAuth(p string) bool {
	p = normalize(p)
	if !underPrefix(p, e.routes.ProtectedPrefix) {
		return false
	}
	if p == e.routes.LoginPath || underPrefix(p, e.routes.ResetPasswordPath) {
		return false
	}
	return true
}

// Decide applies the route matrix. rec is nil when the principal has no
// authorization record or the lookup failed.
func (e *Engine) Decide(p string, principal session.Principal, rec *authz.Record) Decision {
	p = normalize(p)

	if !e.RequiresAuth(p) {
		return Decision{Outcome: Allow, Reason: ReasonPublic}
	}

	if principal.IsAnonymous() {
		return Decision{
			Outcome:  RedirectLogin,
			Location: e.routes.LoginPath + "?redirect=" + escapeReturnPath(p),
			Reason:   ReasonAnonymous,
		}
	}

	if rec == nil || !rec.IsActive {
		reason := ReasonNoRecord
		if rec != nil {
			reason = ReasonInactive
		}
		return Decision{
			Outcome:  RedirectLogin,
			Location: e.routes.LoginPath + "?error=unauthorized",
			Reason:   reason,
		}
	}

	switch rec.Role {
	case authz.RoleAdmin:
		return Decision{Outcome: Allow, Reason: ReasonAdmin}
	case authz.RoleManager:
		if underPrefix(p, e.routes.ManagerHome) {
			return Decision{Outcome: Allow, Reason: ReasonManagerArea}
		}
		return Decision{
			Outcome:  RedirectRestricted,
			Location: e.routes.ManagerHome,
			Reason:   ReasonManagerRedirect,
		}
	default:
		return Decision{Outcome: RedirectLogin, Location: e.routes.LoginPath, Reason: ReasonUnknownRole}
	}
}

// underPrefix matches whole path segments: /admin covers /admin and
// /admin/x but not /administrator.
func underPrefix(p, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// escapeReturnPath query-escapes p but keeps slashes readable.
func escapeReturnPath(p string) string {
	return strings.ReplaceAll(url.QueryEscape(p), "%2F", "/")
}
