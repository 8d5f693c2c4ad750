package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	transportHTTP "github.com/dealerhub/admingate/internal/transport/http"
)

// TestRouter_Routes verifies the public and admin endpoints are mounted.
func TestRouter_Routes(t *testing.T) {
	h := transportHTTP.NewHandler(transportHTTP.Dependencies{})
	rl := transportHTTP.NewRateLimiter(100, 100)
	defer rl.Stop()
	r := transportHTTP.NewRouter(h, rl)

	tests := []struct {
		method      string
		path        string
		expectFound bool
	}{
		{"GET", "/health", true},
		{"GET", "/api/csrf-token", true},
		{"GET", "/api/settings", true},
		{"POST", "/api/admin/login", true},
		{"POST", "/api/admin/logout", true},
		{"GET", "/api/admin/me", true},
		{"PATCH", "/api/admin/settings", true},
		{"GET", "/admin", true},
		{"GET", "/admin/engine-sounds/edit/3", true},
		{"GET", "/api/v1/auth/login", false},
		{"POST", "/api/settings", false},
		{"GET", "/oauth2/authorize", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			assert.Equal(t, tt.expectFound, r.Match(rctx, tt.method, tt.path))
		})
	}
}

// TestRouter_LoginPageServedWithoutSession verifies the public admin page is
// served from the bundle without any session.
func TestRouter_LoginPageServedWithoutSession(t *testing.T) {
	ui := fstest.MapFS{"index.html": {Data: []byte("<html>admin</html>")}}
	h := transportHTTP.NewHandler(transportHTTP.Dependencies{AdminUI: ui})
	rl := transportHTTP.NewRateLimiter(100, 100)
	defer rl.Stop()
	r := transportHTTP.NewRouter(h, rl)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/login", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin")
}

func TestHealthCheck(t *testing.T) {
	h := transportHTTP.NewHandler(transportHTTP.Dependencies{})
	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"admingate"}`, w.Body.String())
}
