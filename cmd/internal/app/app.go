// Package app wires the firsgate server runtime: config, logging, stores,
// the IRN service, HTTP routes, and the event gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"firsgate/cmd/internal/events"
	"firsgate/cmd/internal/integration"
	"firsgate/cmd/internal/irn"
	"firsgate/cmd/internal/irnapi"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the firsgate server runtime.
type App struct {
	cfg Config
	log Logger

	pool      *pgxpool.Pool
	dbEnabled bool

	irnStore irn.Store
	registry integration.Store

	svc *irn.Service
	api *irnapi.Handler
	ws  *events.WSGateway

	metrics      *prometheus.Registry
	httpRequests *prometheus.CounterVec
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	apiCfg := irnapi.LoadConfigFromEnv()
	if err := ValidateSecurityConfig(cfg, apiCfg); err != nil {
		return nil, err
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	irnStore, registry, pool, dbEnabled, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	hub := events.NewHub(log)
	ws := events.NewWSGateway(log, hub)

	svc, err := irn.NewService(irnStore,
		irn.WithLogger(log),
		irn.WithPublisher(hub),
		irn.WithInstrumentation(irn.NewInstrumentation(metrics)),
		irn.WithValidDays(cfg.IRNValidDays),
	)
	if err != nil {
		return nil, err
	}

	api, err := irnapi.NewHandler(log, apiCfg, svc, registry)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:          cfg,
		log:          log,
		pool:         pool,
		dbEnabled:    dbEnabled,
		irnStore:     irnStore,
		registry:     registry,
		svc:          svc,
		api:          api,
		ws:           ws,
		metrics:      metrics,
		httpRequests: NewHTTPMetrics(metrics),
	}, nil
}

// Run starts the HTTP server (and the optional sweep ticker) and blocks
// until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.pool, a.dbEnabled, a.metrics, a.api, a.ws)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log, a.httpRequests),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "sweep_interval", a.cfg.SweepInterval.String())

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if a.cfg.SweepInterval > 0 {
		go a.runSweepLoop(sweepCtx)
	}

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

	a.closeStores()
	a.log.Info("server.stopped")
	return nil
}

// runSweepLoop triggers the expiry sweep on a fixed interval. The sweep is
// safe to run concurrently with requests and with external triggers.
func (a *App) runSweepLoop(ctx context.Context) {
	t := time.NewTicker(a.cfg.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := a.svc.SweepExpired(sweepCtx, time.Time{}); err != nil {
				a.log.Error("sweep.loop.fail", "err", err)
			}
			cancel()
		}
	}
}

func (a *App) closeStores() {
	if a.irnStore != nil {
		_ = a.irnStore.Close()
	}
	if a.registry != nil {
		_ = a.registry.Close()
	}
	// Ownership model: the app owns the pool; store Close() is a no-op.
	if a.pool != nil {
		a.pool.Close()
	}
}

// newStores decides between Postgres-backed persistence and the in-memory
// dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (irn.Store, integration.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return irn.NewMemoryStore(), integration.NewMemoryStore(), nil, false, nil
	}

	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	irnStore, err := irn.NewPostgresStore(pool, irn.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}
	registry, err := integration.NewPostgresStore(pool, integration.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return irnStore, registry, pool, true, nil
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
