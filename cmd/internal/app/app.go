// Package app wires the webbot server runtime: config, logging, persistence,
// the upstream client, the refresh job, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/app/migrate"
	authapi "github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/api"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/refresh"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/auth/session"
	"github.com/kappys1/aim-harder-webbot-sub000/cmd/internal/upstream"
)

// Closer is a small app-level lifecycle abstraction so DB-backed resources
// can be closed gracefully.
type Closer interface {
	Close(ctx context.Context) error
}

// nopCloser is used for in-memory store mode.
type nopCloser struct{}

func (nopCloser) Close(context.Context) error { return nil }

type poolCloser struct {
	pool *pgxpool.Pool
}

func (c poolCloser) Close(context.Context) error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

// App is the server runtime.
type App struct {
	cfg Config
	log Logger

	closer Closer

	dbPool    *pgxpool.Pool
	dbEnabled bool

	registry *prometheus.Registry
	auth     *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	store, closer, dbPool, dbEnabled, err := newSessionStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		_ = closer.Close(context.Background())
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := upstream.NewClient(upstream.LoadConfigFromEnv(), log,
		upstream.WithMetrics(upstream.NewMetrics(registry)))

	svc := session.NewService(sessCfg, log, store, client, nil)
	job := refresh.NewJob(sessCfg, log, store, client,
		refresh.WithMetrics(refresh.NewMetrics(registry)))

	auth := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), svc, job,
		authapi.WithMetrics(authapi.NewMetrics(registry)))

	return &App{
		cfg:       cfg,
		log:       log,
		closer:    closer,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		registry:  registry,
		auth:      auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.registry)

	handler := WithRequestLogging(WithSecurityHeaders(mux), a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 5*time.Minute),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newSessionStore decides between Postgres-backed persistence and the
// in-memory dev store.
func newSessionStore(ctx context.Context, cfg Config, log Logger) (session.Store, Closer, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return session.NewMemoryStore(), nopCloser{}, nil, false, nil
	}

	if cfg.DBMigrate {
		if err := migrate.Up(cfg.DatabaseURL, log); err != nil {
			return nil, nil, nil, false, err
		}
	}

	pool, err := NewDBPool(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")

	// Ownership model: app owns the pool lifecycle; the store never closes it.
	return session.NewPostgresStore(pool), poolCloser{pool: pool}, pool, true, nil
}
