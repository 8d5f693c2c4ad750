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

// Package csrf implements double-submit cookie tokens. The cookie is the only
// store: a token is valid for as long as the browser keeps the cookie.
package csrf

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// TokenBytes is the entropy of a token before hex encoding.
const TokenBytes = 32

// maxBodyPeek bounds how much of a JSON body is read looking for a token.
const maxBodyPeek = 1 << 20

// Config holds cookie and header names.
type Config struct {
	CookieName string
	HeaderName string
	MaxAge     time.Duration
	Secure     bool
}

// DefaultConfig returns the standard cookie and header names.
func DefaultConfig() Config {
	return Config{
		CookieName: "__csrf_token",
		HeaderName: "X-CSRF-Token",
		MaxAge:     24 * time.Hour,
	}
}

// Service issues and validates tokens.
type Service struct {
	cfg  Config
	rand io.Reader
}

// NewService creates a CSRF token service.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg, rand: rand.Reader}
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Generate returns a fresh random token.
func (s *Service) Generate() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Issue returns the caller's token and (re)sets its cookie. A well-formed
// token already held by the browser is kept so open forms stay valid.
func (s *Service) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	token := s.cookieToken(r)
	if !wellFormed(token) {
		var err error
		if token, err = s.Generate(); err != nil {
			return "", err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Secure:   s.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.cfg.MaxAge.Seconds()),
	})
	return token, nil
}

// Validate compares the cookie and request tokens in constant time.
// Either one missing is a mismatch.
func Validate(cookieToken, requestToken string) bool {
	if cookieToken == "" || requestToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(requestToken)) == 1
}

// ValidateRequest checks r's cookie against the token it presents.
func (s *Service) ValidateRequest(r *http.Request) bool {
	return Validate(s.cookieToken(r), s.TokenFromRequest(r))
}

// TokenFromRequest reads the header, falling back to the _csrf or csrfToken
// field of a JSON body. The body is restored for the next handler.
func (s *Service) TokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(s.cfg.HeaderName); token != "" {
		return token
	}
	if r.Body == nil {
		return ""
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var body struct {
		Csrf      string `json:"_csrf"`
		CsrfToken string `json:"csrfToken"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Csrf != "" {
		return body.Csrf
	}
	return body.CsrfToken
}

// RequiresCheck reports whether method can change state.
func RequiresCheck(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func (s *Service) cookieToken(r *http.Request) string {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func wellFormed(token string) bool {
	if len(token) != TokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
