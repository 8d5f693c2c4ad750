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

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dealerhub/admingate/internal/authz"
	"github.com/dealerhub/admingate/internal/session"
)

var (
	someone = session.Principal{ID: "0b9f5c7a-1111-4a0e-9a51-5d1c3f0e2a01"}

	protectedPaths = []string{
		"/admin",
		"/admin/",
		"/admin/blog",
		"/admin/blog/new",
		"/admin/veiculos/123/edit",
		"/admin/settings",
		"/admin/engine-sounds",
		"/admin/engine-sounds/42",
		"/admin/login/extra",
	}
	publicPaths = []string{
		"/",
		"/blog",
		"/administrator",
		"/admin-panel",
		"/admin/login",
		"/admin/reset-password",
		"/admin/reset-password/confirm",
	}
)

func record(role authz.Role, active bool) *authz.Record {
	return &authz.Record{UserID: someone.ID, Role: role, IsActive: active}
}

// TestPurpose: Validates that public paths are allowed for everyone, including anonymous callers.
// Scope: Unit Test
// Expected: Allow with reason "public"; RequiresAuth is false.
// Test Case ID: POL-01
func TestDecide_PublicPaths(t *testing.T) {
	e := NewEngine(DefaultRoutes())
	for _, p := range publicPaths {
		t.Run(p, func(t *testing.T) {
			assert.False(t, e.RequiresAuth(p))
			d := e.Decide(p, session.Anonymous, nil)
			assert.Equal(t, Allow, d.Outcome)
			assert.Equal(t, ReasonPublic, d.Reason)
		})
	}
}

// TestPurpose: Validates that anonymous requests to protected paths redirect to login with a return path.
// Scope: Unit Test
// Security: Unauthenticated access to the admin area
// Expected: RedirectLogin to /admin/login?redirect=<path>.
// Test Case ID: POL-02
func TestDecide_Anonymous(t *testing.T) {
	e := NewEngine(DefaultRoutes())

	d := e.Decide("/admin/blog", session.Anonymous, nil)
	assert.Equal(t, RedirectLogin, d.Outcome)
	assert.Equal(t, "/admin/login?redirect=/admin/blog", d.Location)

	d = e.Decide("/admin/blog/a&b=c", session.Anonymous, nil)
	assert.Equal(t, "/admin/login?redirect=/admin/blog/a%26b%3Dc", d.Location)
}

// TestPurpose: Validates that an authenticated principal without an active record is never allowed.
// Scope: Unit Test
// Security: Authorization record is required independently of authentication
// Expected: RedirectLogin to /admin/login?error=unauthorized for missing or inactive records, any role.
// Test Case ID: POL-03
func TestDecide_NoRecordOrInactive(t *testing.T) {
	e := NewEngine(DefaultRoutes())
	for _, p := range protectedPaths {
		for _, rec := range []*authz.Record{
			nil,
			record(authz.RoleAdmin, false),
			record(authz.RoleManager, false),
			record(authz.RoleUnknown, false),
		} {
			d := e.Decide(p, someone, rec)
			assert.Equal(t, RedirectLogin, d.Outcome, p)
			assert.Equal(t, "/admin/login?error=unauthorized", d.Location, p)
		}
	}
}

// TestPurpose: Validates that active admins reach every protected path.
// Scope: Unit Test
// Expected: Allow everywhere.
// Test Case ID: POL-04
func TestDecide_Admin(t *testing.T) {
	e := NewEngine(DefaultRoutes())
	for _, p := range protectedPaths {
		assert.Equal(t, Allow, e.Decide(p, someone, record(authz.RoleAdmin, true)).Outcome, p)
	}
}

// TestPurpose: Validates that managers are confined to the engine-sound area.
// Scope: Unit Test
// Security: Role-based route restriction
// Expected: Allow under /admin/engine-sounds, RedirectRestricted to it elsewhere.
// Test Case ID: POL-05
func TestDecide_Manager(t *testing.T) {
	e := NewEngine(DefaultRoutes())
	mgr := record(authz.RoleManager, true)

	assert.Equal(t, Allow, e.Decide("/admin/engine-sounds", someone, mgr).Outcome)
	assert.Equal(t, Allow, e.Decide("/admin/engine-sounds/upload", someone, mgr).Outcome)

	for _, p := range []string{"/admin", "/admin/blog", "/admin/settings", "/admin/engine-soundsx"} {
		d := e.Decide(p, someone, mgr)
		assert.Equal(t, RedirectRestricted, d.Outcome, p)
		assert.Equal(t, "/admin/engine-sounds", d.Location, p)
	}
}

// TestPurpose: Validates that dot segments cannot smuggle a manager out of the engine-sound area.
// Scope: Unit Test
// Security: Path traversal against prefix matching
// Expected: The cleaned path is evaluated.
// Test Case ID: POL-06
func TestDecide_PathIsCleaned(t *testing.T) {
	e := NewEngine(DefaultRoutes())
	mgr := record(authz.RoleManager, true)

	d := e.Decide("/admin/engine-sounds/../blog", someone, mgr)
	assert.Equal(t, RedirectRestricted, d.Outcome)

	assert.True(t, e.RequiresAuth("/admin/login/../blog"))
}

// TestPurpose: Validates the defensive default for roles outside the closed set.
// Scope: Unit Test
// Security: Unknown role values never default to allow
// Expected: RedirectLogin to the bare login page.
// Test Case ID: POL-07
func TestDecide_UnknownRole(t *testing.T) {
	e := NewEngine(DefaultRoutes())
	for _, p := range protectedPaths {
		d := e.Decide(p, someone, record(authz.RoleUnknown, true))
		assert.Equal(t, RedirectLogin, d.Outcome, p)
		assert.Equal(t, "/admin/login", d.Location, p)
		assert.Equal(t, ReasonUnknownRole, d.Reason)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "redirect_login", RedirectLogin.String())
	assert.Equal(t, "redirect_restricted", RedirectRestricted.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
