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

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/abtime"

	"github.com/dealerhub/admingate/internal/audit"
	"github.com/dealerhub/admingate/internal/authz"
	"github.com/dealerhub/admingate/internal/config"
	"github.com/dealerhub/admingate/internal/csrf"
	"github.com/dealerhub/admingate/internal/identity"
	"github.com/dealerhub/admingate/internal/observability/logger"
	"github.com/dealerhub/admingate/internal/observability/metrics"
	"github.com/dealerhub/admingate/internal/observability/tracing"
	"github.com/dealerhub/admingate/internal/policy"
	"github.com/dealerhub/admingate/internal/session"
	"github.com/dealerhub/admingate/internal/settings"
	"github.com/dealerhub/admingate/internal/store/postgres"
	transportHTTP "github.com/dealerhub/admingate/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	slog.Info("starting admin gate")
	if err := run(cfg); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg *config.Config) error {
	ctx := context.Background()
	clock := abtime.NewRealTime()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
		Endpoint:       cfg.Observability.OTELEndpoint,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(ctx)
	}

	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("initialize meter: %w", err)
	}
	gateMetrics, err := metrics.NewGateMetrics(meter)
	if err != nil {
		return fmt.Errorf("register gate metrics: %w", err)
	}

	db, err := postgres.New(ctx, dbConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to database")

	adminUsers := postgres.NewAdminUserRepository(db)
	siteSettings := postgres.NewSiteSettingsRepository(db)
	auditLogger := audit.NewSlogLogger(nil)

	provider := identity.NewClient(cfg.Identity.URL, cfg.Identity.AnonKey, cfg.Identity.Timeout)
	verifier := session.NewVerifier(provider, session.CookieConfig{
		AccessName:  cfg.Session.AccessCookieName,
		RefreshName: cfg.Session.RefreshCookieName,
		Domain:      cfg.Session.CookieDomain,
		Path:        cfg.Session.CookiePath,
		Secure:      cfg.Session.CookieSecure,
		SameSite:    session.ParseSameSite(cfg.Session.CookieSameSite),
		Lifetime:    cfg.Session.Lifetime,
	}, cfg.Identity.RefreshMargin, clock)

	var lookup authz.Lookuper = authz.NewService(adminUsers)
	if cfg.Gate.AuthCacheTTL > 0 {
		cached, err := authz.NewCachedLookup(lookup, cfg.Gate.AuthCacheSize, cfg.Gate.AuthCacheTTL, clock)
		if err != nil {
			return fmt.Errorf("initialize authorization cache: %w", err)
		}
		lookup = cached
		slog.Info("authorization cache enabled", logger.String("ttl", cfg.Gate.AuthCacheTTL.String()))
	}

	var adminUI fs.FS
	if info, err := os.Stat(cfg.Server.AdminUIDir); err == nil && info.IsDir() {
		adminUI = os.DirFS(cfg.Server.AdminUIDir)
	} else {
		slog.Warn("admin UI bundle not found, admin pages will 404", logger.String("dir", cfg.Server.AdminUIDir))
	}

	clientIP, err := transportHTTP.NewClientIPResolver(cfg.RateLimit.TrustProxy, cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("configure trusted proxies: %w", err)
	}

	handler := transportHTTP.NewHandler(transportHTTP.Dependencies{
		Verifier: verifier,
		Lookup:   lookup,
		Engine: policy.NewEngine(policy.Routes{
			ProtectedPrefix:   cfg.Gate.ProtectedPrefix,
			LoginPath:         cfg.Gate.LoginPath,
			ResetPasswordPath: cfg.Gate.ResetPasswordPath,
			ManagerHome:       cfg.Gate.ManagerHome,
		}),
		CSRF: csrf.NewService(csrf.Config{
			CookieName: cfg.CSRF.CookieName,
			HeaderName: cfg.CSRF.HeaderName,
			MaxAge:     cfg.CSRF.MaxAge,
			Secure:     cfg.Session.CookieSecure,
		}),
		Authenticator: provider,
		Logins:        adminUsers,
		Settings:      settings.NewCache(siteSettings, cfg.Settings.CacheTTL, clock),
		AuditLogger:   auditLogger,
		Metrics:       gateMetrics,
		AdminUI:       adminUI,
		ClientIP:      clientIP,
	})

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      transportHTTP.NewRouter(handler, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	return nil
}

func dbConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ElevatedRole:    cfg.Database.ElevatedRole,
	}
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, dbConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying admin gate schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
