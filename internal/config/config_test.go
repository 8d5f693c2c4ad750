package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("IDENTITY_URL", "https://id.example.test")
	t.Setenv("IDENTITY_ANON_KEY", "anon")
}

// TestPurpose: Validates that defaults describe the admin route policy and cookie names.
// Scope: Unit Test
// Expected: Paths, cookie names and durations fall back to their documented defaults.
// Test Case ID: CFG-01
func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/admin", cfg.Gate.ProtectedPrefix)
	assert.Equal(t, "/admin/login", cfg.Gate.LoginPath)
	assert.Equal(t, "/admin/reset-password", cfg.Gate.ResetPasswordPath)
	assert.Equal(t, "/admin/engine-sounds", cfg.Gate.ManagerHome)
	assert.Equal(t, time.Duration(0), cfg.Gate.AuthCacheTTL)
	assert.Equal(t, "__csrf_token", cfg.CSRF.CookieName)
	assert.Equal(t, "X-CSRF-Token", cfg.CSRF.HeaderName)
	assert.Equal(t, 24*time.Hour, cfg.CSRF.MaxAge)
	assert.Equal(t, "service_role", cfg.Database.ElevatedRole)
	assert.Equal(t, 10*time.Second, cfg.Identity.Timeout)
	assert.False(t, cfg.RateLimit.TrustProxy)
	assert.Empty(t, cfg.RateLimit.TrustedProxies)
}

// TestPurpose: Validates that environment overrides are honoured and bad values fall back.
// Scope: Unit Test
// Expected: Valid overrides apply; an unparsable duration keeps the default.
// Test Case ID: CFG-02
func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("GATE_AUTH_CACHE_TTL", "30s")
	t.Setenv("SETTINGS_CACHE_TTL", "not-a-duration")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("RATE_LIMIT_TRUST_PROXY", "true")
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Gate.AuthCacheTTL)
	assert.Equal(t, 60*time.Second, cfg.Settings.CacheTTL)
	assert.True(t, cfg.Session.CookieSecure)
	assert.True(t, cfg.RateLimit.TrustProxy)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.RateLimit.TrustedProxies)
}

// TestPurpose: Validates that missing secrets fail configuration loading.
// Scope: Unit Test
// Security: Fail closed on incomplete credentials
// Expected: Load returns an error naming the missing variable.
// Test Case ID: CFG-03
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("IDENTITY_URL", "")
	t.Setenv("IDENTITY_ANON_KEY", "anon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_URL")
}
