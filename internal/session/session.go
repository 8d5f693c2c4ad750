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

// Package session resolves the identity-provider session carried in request
// cookies into a Principal. It never writes application state; the only side
// effect of verification is a list of cookies the caller must write back.
package session

import (
	"context"
	"net/http"

	"github.com/dealerhub/admingate/internal/identity"
)

// Principal is the authenticated identity behind a session.
// The zero value is the anonymous principal.
type Principal struct {
	ID    string
	Email string
}

// Anonymous is the principal of a request without a valid session.
var Anonymous = Principal{}

// IsAnonymous reports whether p carries no identity.
func (p Principal) IsAnonymous() bool {
	return p.ID == ""
}

// Result is the outcome of verifying a request's session.
// Cookies must be written to the response whatever the caller decides next.
type Result struct {
	Principal Principal
	Cookies   []*http.Cookie
}

// Provider is the subset of the identity provider the verifier needs.
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Tokens, error)
}

// Apply writes the result's cookie mutations to w.
func (r Result) Apply(w http.ResponseWriter) {
	for _, c := range r.Cookies {
		http.SetCookie(w, c)
	}
}
