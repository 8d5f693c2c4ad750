package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/dealerhub/admingate/internal/authz"
	"github.com/dealerhub/admingate/internal/csrf"
	"github.com/dealerhub/admingate/internal/identity"
	"github.com/dealerhub/admingate/internal/policy"
	"github.com/dealerhub/admingate/internal/session"
	"github.com/dealerhub/admingate/internal/settings"
)

var testCookies = session.CookieConfig{
	AccessName:  "sb-access-token",
	RefreshName: "sb-refresh-token",
	Path:        "/",
	SameSite:    http.SameSiteLaxMode,
}

type MockVerifier struct {
	mu     sync.Mutex
	result session.Result
	calls  int
	// cancel, when set, is invoked during Verify to simulate the host aborting the request.
	cancel context.CancelFunc
}

func (m *MockVerifier) Verify(ctx context.Context, r *http.Request) session.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.cancel != nil {
		m.cancel()
	}
	return m.result
}

func (m *MockVerifier) Cookies() session.CookieConfig { return testCookies }

func (m *MockVerifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type MockLookup struct {
	mu      sync.Mutex
	records map[string]authz.Record
	calls   int
}

func (m *MockLookup) Lookup(ctx context.Context, id string) (authz.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	rec, ok := m.records[id]
	return rec, ok
}

func (m *MockLookup) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type MockAuthenticator struct {
	tokens     *identity.Tokens
	err        error
	signedOut  []string
	signOutErr error
}

func (m *MockAuthenticator) SignInWithPassword(ctx context.Context, email, password string) (*identity.Tokens, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens, nil
}

func (m *MockAuthenticator) SignOut(ctx context.Context, accessToken string) error {
	m.signedOut = append(m.signedOut, accessToken)
	return m.signOutErr
}

type MockLogins struct {
	touched []string
}

func (m *MockLogins) TouchLastLogin(ctx context.Context, id string) error {
	m.touched = append(m.touched, id)
	return nil
}

type MockSettings struct {
	current settings.SiteSettings
	updates []string
	err     error
}

func (m *MockSettings) Get(ctx context.Context) settings.SiteSettings { return m.current }

func (m *MockSettings) Update(ctx context.Context, key string, value bool, updatedBy string) error {
	if !settings.IsKnownKey(key) {
		return settings.ErrUnknownKey
	}
	if m.err != nil {
		return m.err
	}
	m.updates = append(m.updates, key+"="+updatedBy)
	return nil
}

const (
	adminID    = "0b9f6f4e-1c1e-4f57-9c39-6a1b3f7d1a01"
	managerID  = "0b9f6f4e-1c1e-4f57-9c39-6a1b3f7d1a02"
	inactiveID = "0b9f6f4e-1c1e-4f57-9c39-6a1b3f7d1a03"
	strangerID = "0b9f6f4e-1c1e-4f57-9c39-6a1b3f7d1a04"
)

type testEnv struct {
	handler  *Handler
	verifier *MockVerifier
	lookup   *MockLookup
	auth     *MockAuthenticator
	logins   *MockLogins
	settings *MockSettings
}

func newTestEnv() *testEnv {
	env := &testEnv{
		verifier: &MockVerifier{},
		lookup: &MockLookup{records: map[string]authz.Record{
			adminID:    {UserID: adminID, Role: authz.RoleAdmin, IsActive: true},
			managerID:  {UserID: managerID, Role: authz.RoleManager, IsActive: true},
			inactiveID: {UserID: inactiveID, Role: authz.RoleAdmin, IsActive: false},
		}},
		auth:     &MockAuthenticator{},
		logins:   &MockLogins{},
		settings: &MockSettings{current: settings.Defaults()},
	}
	env.handler = NewHandler(Dependencies{
		Verifier:      env.verifier,
		Lookup:        env.lookup,
		Engine:        policy.NewEngine(policy.DefaultRoutes()),
		CSRF:          csrf.NewService(csrf.DefaultConfig()),
		Authenticator: env.auth,
		Logins:        env.logins,
		Settings:      env.settings,
	})
	return env
}

func (e *testEnv) signedInAs(id string) {
	e.verifier.result = session.Result{Principal: session.Principal{ID: id, Email: id + "@dealer.test"}}
}
