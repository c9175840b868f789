package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/steampulse/steampulse/internal/api"
	"github.com/steampulse/steampulse/internal/auth"
	"github.com/steampulse/steampulse/internal/buildinfo"
	"github.com/steampulse/steampulse/internal/config"
	"github.com/steampulse/steampulse/internal/deals"
	"github.com/steampulse/steampulse/internal/metrics"
	"github.com/steampulse/steampulse/internal/netutil"
	"github.com/steampulse/steampulse/internal/scheduler"
	"github.com/steampulse/steampulse/internal/steam"
	"github.com/steampulse/steampulse/internal/store"
)

const (
	// startupTimeout bounds database connect plus migrations.
	startupTimeout = 30 * time.Second
	// httpDrainTimeout bounds in-flight request draining at shutdown.
	httpDrainTimeout = 5 * time.Second
	// schedulerGrace is how long in-flight jobs may finish before their
	// context is canceled.
	schedulerGrace = 30 * time.Second
)

type pulseApp struct {
	envCfg    *config.EnvConfig
	metrics   *metrics.Set
	ledger    *auth.NonceLedger
	scheduler *scheduler.Scheduler
	apiSrv    *api.Server
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if config.IsWeakSecret(envCfg.SessionSecret) {
		log.Printf("[config] SESSION_SECRET scores below the recommended strength; consider a longer random value")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	st, err := store.New(startupCtx, store.Config{
		Host:     envCfg.DBHost,
		Port:     envCfg.DBPort,
		User:     envCfg.DBUser,
		Password: envCfg.DBPassword,
		Database: envCfg.DBName,
		Schema:   envCfg.DBSchema,
		MinConns: envCfg.DBPoolMinSize,
		MaxConns: envCfg.DBPoolMaxSize,
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := st.EnsureInitialized(startupCtx); err != nil {
		st.Close()
		return fmt.Errorf("store init: %w", err)
	}
	log.Printf("[store] schema %q ready", envCfg.DBSchema)

	app, err := newPulseApp(envCfg, st)
	if err != nil {
		st.Close()
		return err
	}

	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancelDrain := context.WithTimeout(context.Background(), httpDrainTimeout)
	defer cancelDrain()
	app.shutdown(ctx)

	st.Close()
	log.Println("Store closed")

	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func newPulseApp(envCfg *config.EnvConfig, st *store.Store) (*pulseApp, error) {
	app := &pulseApp{envCfg: envCfg}

	if envCfg.MetricsEnabled {
		app.metrics = metrics.New()
	}

	registry, err := auth.NewRegistry(envCfg.Clients)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessions(envCfg.SessionSecret, envCfg.SessionTTL, envCfg.SessionLeeway)
	if err != nil {
		return nil, err
	}
	app.ledger, err = auth.NewNonceLedger(envCfg.NonceMaxEntries, envCfg.NonceTTL)
	if err != nil {
		return nil, err
	}
	verifier := auth.NewVerifier(registry, app.ledger)
	log.Printf("[auth] %d clients registered", registry.Len())

	steamHTTP := netutil.NewClient(netutil.DefaultTimeout)
	steamHTTP.Transport = app.metrics.UpstreamTransport("steam", steamHTTP.Transport)
	steamClient := steam.New(steam.Config{
		APIKey:   envCfg.SteamAPIKey,
		APIURL:   envCfg.SteamAPIURL,
		StoreURL: envCfg.SteamStoreURL,
		Country:  envCfg.SteamCountry,
		Language: envCfg.SteamLanguage,
		HTTP:     steamHTTP,
	})
	catalog := steam.NewCatalog(steamClient)

	var users api.Users
	if steamClient.HasAPIKey() {
		u, err := steam.NewUsers(steamClient)
		if err != nil {
			return nil, err
		}
		users = u
	} else {
		log.Printf("[steam] STEAM_API_KEY not set; player lookup routes answer 503")
	}

	var dealsAPI api.Deals
	if envCfg.DealsClientID != "" {
		dealsHTTP := netutil.NewClient(netutil.DefaultTimeout)
		dealsHTTP.Transport = app.metrics.UpstreamTransport("deals", dealsHTTP.Transport)
		d, err := deals.New(deals.Config{
			ClientID:     envCfg.DealsClientID,
			ClientSecret: envCfg.DealsClientSecret,
			APIURL:       envCfg.DealsAPIURL,
			HTTP:         dealsHTTP,
		})
		if err != nil {
			return nil, err
		}
		dealsAPI = d
	} else {
		log.Printf("[deals] DEALS_CLIENT_ID not set; deal routes answer 503")
	}

	var schedStatus api.SchedulerStatus
	if envCfg.SchedulerEnabled {
		app.scheduler = scheduler.New(deriveSchedulerConfig(envCfg), st, steamClient, catalog, app.metrics)
		schedStatus = app.scheduler
	} else {
		log.Printf("[scheduler] disabled via SCHEDULER_ENABLED")
	}

	app.apiSrv = api.NewServer(api.Config{
		ListenAddr:     envCfg.ListenAddr,
		MaxBodyBytes:   envCfg.MaxBodyBytes,
		Version:        buildinfo.Version,
		LoginPerMinute: envCfg.RateLimitLoginPerMin,
		ReadPerMinute:  envCfg.RateLimitReadPerMin,
		WritePerMinute: envCfg.RateLimitWritePerMin,
	}, api.Deps{
		Store:     st,
		Players:   steamClient,
		Catalog:   catalog,
		Users:     users,
		Deals:     dealsAPI,
		Sessions:  sessions,
		Verifier:  verifier,
		Scheduler: schedStatus,
		Metrics:   app.metrics,
	})

	// Scheduler starts last: every job dependency above is ready by now.
	if app.scheduler != nil {
		if err := app.scheduler.Start(); err != nil {
			return nil, fmt.Errorf("scheduler start: %w", err)
		}
	}
	return app, nil
}

// deriveSchedulerConfig maps env settings onto the job engine's config.
// Retention is configured in whole days.
func deriveSchedulerConfig(envCfg *config.EnvConfig) scheduler.Config {
	return scheduler.Config{
		WatchlistTopN:    envCfg.WatchlistTopN,
		SampleInterval:   envCfg.SampleInterval,
		RefreshInterval:  envCfg.WatchlistRefreshInterval,
		BackfillInterval: envCfg.BackfillInterval,
		HourlyInterval:   envCfg.RollupHourlyInterval,
		DailyInterval:    envCfg.RollupDailyInterval,
		PruneInterval:    envCfg.PruneInterval,
		RetentionRaw:     time.Duration(envCfg.RetentionRawDays) * 24 * time.Hour,
		RetentionHourly:  time.Duration(envCfg.RetentionHourlyDays) * 24 * time.Hour,
		RetentionDaily:   time.Duration(envCfg.RetentionDailyDays) * 24 * time.Hour,
	}
}

func (a *pulseApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)
	reportServerErr := func(name string, err error) {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		wrapped := fmt.Errorf("%s: %w", name, err)
		select {
		case serverErrCh <- wrapped:
		default:
		}
	}

	go func() {
		log.Printf("[api] SteamPulse %s listening on %s", buildinfo.Version, a.envCfg.ListenAddr)
		reportServerErr("api server", a.apiSrv.ListenAndServe())
	}()

	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
		return err
	}
}

// shutdown stops in order: the HTTP server drains first so no new work
// arrives, then the scheduler finishes or abandons in-flight jobs, then the
// auth caches are released. The store closes last, in run, because draining
// handlers and jobs may still touch it.
func (a *pulseApp) shutdown(ctx context.Context) {
	if err := a.apiSrv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("API server stopped")

	if a.scheduler != nil {
		a.scheduler.Stop(schedulerGrace)
		log.Println("Scheduler stopped")
	}

	a.ledger.Close()
	log.Println("Nonce ledger closed")
}
