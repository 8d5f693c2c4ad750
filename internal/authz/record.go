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
	"errors"
	"strings"
)

// Domain errors
var (
	ErrRecordNotFound = errors.New("authorization record not found")
)

// Role is the closed set of back-office roles.
type Role int

const (
	// RoleUnknown is any stored value outside the closed set. It is always denied.
	RoleUnknown Role = iota
	// RoleAdmin may reach every protected path.
	RoleAdmin
	// RoleManager may reach only the engine-sound management area.
	RoleManager
)

// ParseRole converts a stored role value. Unrecognised values map to RoleUnknown.
// "gerente" is the legacy stored name for managers.
func ParseRole(v string) Role {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "admin":
		return RoleAdmin
	case "manager", "gerente":
		return RoleManager
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleManager:
		return "manager"
	default:
		return "unknown"
	}
}

// Record grants a principal a back-office role. It lives in admin_users,
// separate from the identity provider's users.
type Record struct {
	UserID   string
	Role     Role
	IsActive bool
}
