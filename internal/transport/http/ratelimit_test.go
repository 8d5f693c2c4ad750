package http_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transportHTTP "github.com/dealerhub/admingate/internal/transport/http"
)

// TestPurpose: Validates that a client cannot escape the rate limit by rotating X-Forwarded-For.
// Scope: Unit Test
// Security: Brute-force protection (CWE-307), spoofed client address (CWE-348)
// Expected: With proxies untrusted, 20 requests from one peer with distinct X-Forwarded-For values are throttled after the burst.
// Test Case ID: RL-01
func TestRateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	h := transportHTTP.NewHandler(transportHTTP.Dependencies{})
	rl := transportHTTP.NewRateLimiter(1, 1)
	defer rl.Stop()
	r := transportHTTP.NewRouter(h, rl)

	blocked := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			blocked++
		}
	}

	assert.GreaterOrEqual(t, blocked, 18)
}

// TestPurpose: Validates that distinct peers keep separate buckets.
// Scope: Unit Test
// Expected: A second remote address is not throttled by the first one's traffic.
// Test Case ID: RL-02
func TestRateLimit_SeparatesPeers(t *testing.T) {
	h := transportHTTP.NewHandler(transportHTTP.Dependencies{})
	rl := transportHTTP.NewRateLimiter(1, 1)
	defer rl.Stop()
	r := transportHTTP.NewRouter(h, rl)

	serve := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve("198.51.100.7:40000"))
	assert.Equal(t, http.StatusTooManyRequests, serve("198.51.100.7:40001"))
	assert.Equal(t, http.StatusOK, serve("198.51.100.8:40000"))
}

// TestPurpose: Validates client address attribution behind proxies.
// Scope: Unit Test
// Security: Spoofed client address (CWE-348)
// Expected: Forwarded hops are used only when trusted, taking the right-most untrusted hop.
// Test Case ID: RL-03
func TestClientIPResolver(t *testing.T) {
	req := func(remote string, xff ...string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		for _, v := range xff {
			r.Header.Add("X-Forwarded-For", v)
		}
		return r
	}

	untrusted, err := transportHTTP.NewClientIPResolver(false, nil)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", untrusted.ClientIP(req("198.51.100.7:1234", "203.0.113.9")))

	var none *transportHTTP.ClientIPResolver
	assert.Equal(t, "198.51.100.7", none.ClientIP(req("198.51.100.7:1234", "203.0.113.9")))

	peerOnly, err := transportHTTP.NewClientIPResolver(true, nil)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", peerOnly.ClientIP(req("10.0.0.2:1234", "6.6.6.6, 203.0.113.9")))
	assert.Equal(t, "10.0.0.2", peerOnly.ClientIP(req("10.0.0.2:1234")))

	ranged, err := transportHTTP.NewClientIPResolver(true, []string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", ranged.ClientIP(req("10.0.0.2:1234", "6.6.6.6, 203.0.113.9, 192.0.2.10")))
	assert.Equal(t, "203.0.113.9", ranged.ClientIP(req("10.0.0.2:1234", "6.6.6.6", "203.0.113.9, 10.1.1.1")))
	assert.Equal(t, "198.51.100.7", ranged.ClientIP(req("198.51.100.7:1234", "203.0.113.9")),
		"a peer outside the trusted ranges cannot supply forwarded hops")

	_, err = transportHTTP.NewClientIPResolver(true, []string{"not-an-ip"})
	assert.Error(t, err)
}
