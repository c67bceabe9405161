package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/harborlight/beacon/pkg/api"
	"github.com/harborlight/beacon/pkg/audit"
	"github.com/harborlight/beacon/pkg/config"
	"github.com/harborlight/beacon/pkg/guard"
	"github.com/harborlight/beacon/pkg/identity"
	"github.com/harborlight/beacon/pkg/idle"
	"github.com/harborlight/beacon/pkg/middleware"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/profiles"
	"github.com/harborlight/beacon/pkg/session"
	"github.com/harborlight/beacon/pkg/submissions"
	"github.com/harborlight/beacon/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "beacon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting beacon admin backend")

	ctx := context.Background()

	// PostgreSQL: profiles, submissions, audit trail.
	db, err := openPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := profiles.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("profile migrations failed: %w", err)
	}
	if err := submissions.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("submission migrations failed: %w", err)
	}

	// Redis: session store.
	redisClient, err := openRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Metrics and tracing.
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		go trackDBPool(db, metrics)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Sessions slide their idle TTL in Redis; the watcher expires them
	// server-side so an abandoned browser cannot keep one alive.
	sessions := session.NewStore(redisClient, cfg.Session.IdleTimeout, cfg.Session.MaxLifetime)
	watcher := idle.NewWatcher(cfg.Session.IdleTimeout, func(token string) {
		defer observability.RecoverPanic(logger, "idle expiry callback")

		expireCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sessions.Delete(expireCtx, token); err != nil {
			logger.WithError(err).Error("failed to delete expired session")
		}
	}, metrics, logger)

	profileStore := profiles.NewStore(db)
	resolver := profiles.NewResolver(profileStore)

	recorder, err := audit.NewDBRecorder(db, logger, metrics)
	if err != nil {
		return err
	}

	identities := identity.NewClient(cfg.AuthBackend.BaseURL, cfg.AuthBackend.ServiceRoleKey)
	if !identities.Configured() {
		logger.Warn("service-role key not set; user provisioning endpoints will answer 500")
	}

	issuer := cfg.AuthBackend.OIDCIssuerURL
	if issuer == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}
	authenticator, err := session.NewOIDCAuthenticator(ctx, session.OIDCConfig{
		IssuerURL:    issuer,
		ClientID:     cfg.AuthBackend.OIDCClientID,
		ClientSecret: cfg.AuthBackend.OIDCClientSecret,
		RedirectURL:  cfg.AuthBackend.OIDCRedirectURL,
		CookieSecure: cfg.Session.CookieSecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up OIDC sign-in: %w", err)
	}

	cookie := session.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}
	guardMW := guard.NewMiddleware(sessions, resolver, watcher, cookie, metrics, logger)
	authFlow := session.NewHandler(authenticator, sessions, resolver, watcher, recorder, identities, cookie, logger)
	userService := users.NewService(identities, profileStore, resolver, recorder, logger)

	server := api.NewServer(api.Deps{
		Guard:          guardMW,
		AuthFlow:       authFlow,
		Users:          users.NewHandler(userService, logger),
		Submissions:    submissions.NewHandler(submissions.NewStore(db), recorder, logger),
		Audit:          audit.NewHandler(recorder),
		Health:         observability.NewHealthChecker(db, redisClient),
		Metrics:        metrics,
		Registry:       registry,
		RateLimiter:    middleware.NewRateLimiter(middleware.IntakeRateLimitConfig()),
		Logger:         logger,
		TracingEnabled: cfg.Observability.OTelEnabled,
	})

	// Retention job for the audit trail.
	scheduler := cron.New()
	if cfg.Audit.RetentionDays > 0 {
		_, err := scheduler.AddFunc(cfg.Audit.PurgeSchedule, func() {
			purgeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Audit.RetentionDays)
			n, err := recorder.PurgeBefore(purgeCtx, cutoff)
			if err != nil {
				logger.WithError(err).Error("audit retention purge failed")
				return
			}
			logger.WithField("purged", n).Info("audit retention purge complete")
		})
		if err != nil {
			return fmt.Errorf("failed to schedule audit retention purge: %w", err)
		}
		scheduler.Start()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := startHealthServer(cfg, db, redisClient, registry, logger)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		watcher.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.Infof("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
		}
	}()

	return shutdown.WaitForShutdown()
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// startHealthServer serves probes and metrics on a separate port so
// they stay reachable even if the main listener is saturated.
func startHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client,
	registry *prometheus.Registry, logger *observability.Logger) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	mux.Handle("/metrics", observability.MetricsHandler(registry))

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	return srv
}

// trackDBPool mirrors database/sql pool stats into gauges.
func trackDBPool(db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := db.Stats()
		metrics.DBConnectionsActive.Set(float64(stats.InUse))
		metrics.DBConnectionsIdle.Set(float64(stats.Idle))
	}
}
