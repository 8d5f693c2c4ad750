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
	"net/http"
	"time"

	"github.com/dealerhub/admingate/internal/identity"
)

// CookieConfig describes how session tokens are stored in cookies.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
	// Lifetime is the sliding max-age renewed on every verified request.
	Lifetime time.Duration
}

// ParseSameSite maps a configuration string to http.SameSite, defaulting to Lax.
func ParseSameSite(v string) http.SameSite {
	switch v {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// SessionCookies returns the cookies that store t.
func (c CookieConfig) SessionCookies(t *identity.Tokens) []*http.Cookie {
	return []*http.Cookie{
		c.cookie(c.AccessName, t.AccessToken),
		c.cookie(c.RefreshName, t.RefreshToken),
	}
}

// ClearCookies returns cookies that delete both session tokens.
func (c CookieConfig) ClearCookies() []*http.Cookie {
	expire := func(name string) *http.Cookie {
		return &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: true,
			SameSite: c.SameSite,
			MaxAge:   -1,
		}
	}
	return []*http.Cookie{expire(c.AccessName), expire(c.RefreshName)}
}

func (c CookieConfig) reissue(access, refresh string) []*http.Cookie {
	out := []*http.Cookie{c.cookie(c.AccessName, access)}
	if refresh != "" {
		out = append(out, c.cookie(c.RefreshName, refresh))
	}
	return out
}

func (c CookieConfig) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
		MaxAge:   int(c.Lifetime.Seconds()),
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
