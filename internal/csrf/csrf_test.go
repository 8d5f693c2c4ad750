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

package csrf

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

// TestPurpose: Validates the double-submit comparison.
// Scope: Unit Test
// Security: CSRF (CWE-352)
// Expected: Equal non-empty tokens are valid; any mismatch or empty side is invalid.
// Test Case ID: CSRF-01
func TestValidate(t *testing.T) {
	for _, tok := range []string{"a", "0123456789abcdef", strings.Repeat("f", 64), "ünïcode"} {
		assert.True(t, Validate(tok, tok), tok)
	}

	assert.False(t, Validate("abc", "abd"))
	assert.False(t, Validate("abc", "abcd"))
	assert.False(t, Validate("", "abc"))
	assert.False(t, Validate("abc", ""))
	assert.False(t, Validate("", ""))
}

// TestPurpose: Validates token issuance sets a hardened cookie and returns the same value.
// Scope: Unit Test
// Security: Token cookie must be unreadable by page scripts
// Expected: 64 hex chars, HttpOnly, SameSite=Strict, 24h max-age.
// Test Case ID: CSRF-02
func TestIssue_NewToken(t *testing.T) {
	s := NewService(DefaultConfig())
	w := httptest.NewRecorder()

	token, err := s.Issue(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	require.NoError(t, err)
	assert.Len(t, token, 64)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "__csrf_token", c.Name)
	assert.Equal(t, token, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 86400, c.MaxAge)
	assert.Equal(t, "/", c.Path)
}

// TestPurpose: Validates that an existing well-formed token is reused and a forged one is replaced.
// Scope: Unit Test
// Expected: Reuse for 64-hex cookie; regenerate for anything else.
// Test Case ID: CSRF-03
func TestIssue_ReusesWellFormedCookie(t *testing.T) {
	s := NewService(DefaultConfig())
	existing := strings.Repeat("ab", 32)

	r := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	r.AddCookie(&http.Cookie{Name: "__csrf_token", Value: existing})
	token, err := s.Issue(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, existing, token)

	r = httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	r.AddCookie(&http.Cookie{Name: "__csrf_token", Value: "attacker-chosen"})
	token, err = s.Issue(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", token)
}

func TestGenerate_Unique(t *testing.T) {
	s := NewService(DefaultConfig())
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := s.Generate()
		require.NoError(t, err)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestGenerate_RandomFailure(t *testing.T) {
	s := NewService(DefaultConfig())
	s.rand = failingReader{}

	_, err := s.Generate()
	assert.Error(t, err)
}

// TestPurpose: Validates request token extraction from header and JSON body.
// Scope: Unit Test
// Expected: Header wins; JSON body fields are a fallback and the body stays readable.
// Test Case ID: CSRF-04
func TestTokenFromRequest(t *testing.T) {
	s := NewService(DefaultConfig())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/settings", strings.NewReader(`{"_csrf":"body"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-CSRF-Token", "header")
	assert.Equal(t, "header", s.TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodPost, "/api/admin/settings", strings.NewReader(`{"csrfToken":"body","key":"x"}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.Equal(t, "body", s.TokenFromRequest(r))
	rest, _ := io.ReadAll(r.Body)
	assert.JSONEq(t, `{"csrfToken":"body","key":"x"}`, string(rest))

	r = httptest.NewRequest(http.MethodPost, "/api/admin/settings", strings.NewReader(`_csrf=form`))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Empty(t, s.TokenFromRequest(r))
}

// TestPurpose: Validates request-level validation end to end.
// Scope: Unit Test
// Security: CSRF (CWE-352)
// Expected: Matching cookie and header pass; mismatch or missing cookie fail.
// Test Case ID: CSRF-05
func TestValidateRequest(t *testing.T) {
	s := NewService(DefaultConfig())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	r.AddCookie(&http.Cookie{Name: "__csrf_token", Value: "t1"})
	r.Header.Set("X-CSRF-Token", "t1")
	assert.True(t, s.ValidateRequest(r))

	r = httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	r.AddCookie(&http.Cookie{Name: "__csrf_token", Value: "t1"})
	r.Header.Set("X-CSRF-Token", "t2")
	assert.False(t, s.ValidateRequest(r))

	r = httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	r.Header.Set("X-CSRF-Token", "t1")
	assert.False(t, s.ValidateRequest(r))
}

func TestRequiresCheck(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		assert.False(t, RequiresCheck(m), m)
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		assert.True(t, RequiresCheck(m), m)
	}
}
