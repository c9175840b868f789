// Package scheduler drives the periodic jobs: player-count sampling,
// watchlist refresh, metadata backfill, aggregate roll-ups, and retention
// pruning. Every job runs under a skip-if-still-running policy so at most
// one instance of each is active at a time.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/steampulse/steampulse/internal/metrics"
	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/steam"
)

// backfillStartDelay postpones the first metadata backfill so the initial
// watchlist refresh lands first.
const backfillStartDelay = 2 * time.Minute

// Store is the persistence surface the jobs need.
type Store interface {
	Watchlist(ctx context.Context) ([]model.WatchlistEntry, error)
	UpsertWatchlist(ctx context.Context, appid int64, name string, lastCount int64) error
	InsertPlayerCount(ctx context.Context, appid int64, ts time.Time, count int64) error
	GamesMissingDetails(ctx context.Context, appids []int64) ([]int64, error)
	UpsertGame(ctx context.Context, g model.GameDetails) error
	AddGameGenres(ctx context.Context, appid int64, genres []string) error
	AddGameCategories(ctx context.Context, appid int64, categories []string) error
	RollupHourly(ctx context.Context, since, until time.Time, appids ...int64) (int, error)
	RollupDaily(ctx context.Context, since, until time.Time, appids ...int64) (int, error)
	PruneRaw(ctx context.Context, olderThan time.Time) (int64, error)
	PruneHourly(ctx context.Context, olderThan time.Time) (int64, error)
	PruneDaily(ctx context.Context, olderThan time.Time) (int64, error)
}

// Players samples live player counts.
type Players interface {
	CurrentPlayers(ctx context.Context, appid int64) (int64, error)
}

// Catalog serves chart and storefront lookups.
type Catalog interface {
	MostPlayed(ctx context.Context, limit int) ([]steam.MostPlayedEntry, error)
	AppDetails(ctx context.Context, appid int64) (model.GameDetails, error)
}

// Config carries the job cadences and retention windows.
type Config struct {
	WatchlistTopN    int
	SampleInterval   time.Duration
	RefreshInterval  time.Duration
	BackfillInterval time.Duration
	HourlyInterval   time.Duration
	DailyInterval    time.Duration
	PruneInterval    time.Duration

	RetentionRaw    time.Duration
	RetentionHourly time.Duration
	RetentionDaily  time.Duration
}

// Scheduler owns the cron instance and the job set.
type Scheduler struct {
	cfg     Config
	store   Store
	players Players
	catalog Catalog
	metrics *metrics.Set

	cron    *cron.Cron
	chain   cron.Chain
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	now     func() time.Time
}

// New builds the scheduler. Jobs are registered by Start.
func New(cfg Config, store Store, players Players, catalog Catalog, m *metrics.Set) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cron.PrintfLogger(log.New(log.Writer(), "[scheduler] ", log.LstdFlags))
	return &Scheduler{
		cfg:     cfg,
		store:   store,
		players: players,
		catalog: catalog,
		metrics: m,
		cron:    cron.New(),
		chain:   cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// firstThenEvery fires once after an initial delay, then at a fixed
// interval. Next is only called from the cron run loop, so the fired
// flag needs no locking.
type firstThenEvery struct {
	delay time.Duration
	every time.Duration
	fired bool
}

func (s *firstThenEvery) Next(t time.Time) time.Time {
	if !s.fired {
		s.fired = true
		return t.Add(s.delay)
	}
	return t.Add(s.every)
}

// Start registers the jobs and begins firing them. The watchlist refresh
// runs immediately; the metadata backfill first runs after a short delay;
// everything else waits for its first full interval.
func (s *Scheduler) Start() error {
	type jobSpec struct {
		name  string
		every time.Duration
		first time.Duration
		fn    func(context.Context) error
	}
	specs := []jobSpec{
		{name: "sample_player_counts", every: s.cfg.SampleInterval, first: s.cfg.SampleInterval, fn: s.samplePlayerCounts},
		{name: "refresh_watchlist", every: s.cfg.RefreshInterval, first: 0, fn: s.refreshWatchlist},
		{name: "backfill_game_metadata", every: s.cfg.BackfillInterval, first: backfillStartDelay, fn: s.backfillGameMetadata},
		{name: "rollup_hourly", every: s.cfg.HourlyInterval, first: s.cfg.HourlyInterval, fn: s.rollupHourly},
		{name: "rollup_daily", every: s.cfg.DailyInterval, first: s.cfg.DailyInterval, fn: s.rollupDaily},
		{name: "prune_raw", every: s.cfg.PruneInterval, first: s.cfg.PruneInterval, fn: s.pruneRaw},
		{name: "prune_hourly", every: s.cfg.PruneInterval, first: s.cfg.PruneInterval, fn: s.pruneHourly},
		{name: "prune_daily", every: s.cfg.PruneInterval, first: s.cfg.PruneInterval, fn: s.pruneDaily},
	}

	for _, spec := range specs {
		if spec.every <= 0 {
			return fmt.Errorf("scheduler: %s: interval must be positive, got %s", spec.name, spec.every)
		}
		job := s.chain.Then(cron.FuncJob(s.wrap(spec.name, spec.fn)))
		s.cron.Schedule(&firstThenEvery{delay: spec.first, every: spec.every}, job)
	}

	s.cron.Start()
	s.running.Store(true)
	log.Printf("[scheduler] started %d jobs", len(specs))
	return nil
}

// Stop halts new fires and waits up to grace for in-flight jobs, then
// cancels whatever is still running and waits for it to return.
func (s *Scheduler) Stop(grace time.Duration) {
	s.running.Store(false)
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
		log.Printf("[scheduler] grace period elapsed, canceling in-flight jobs")
		s.cancel()
		<-stopCtx.Done()
	}
	s.cancel()
	log.Printf("[scheduler] stopped")
}

// Running reports whether the scheduler has started and not yet stopped.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// wrap funnels a job through logging and metrics. Job errors are terminal
// for the run only; the schedule keeps firing.
func (s *Scheduler) wrap(name string, fn func(context.Context) error) func() {
	return func() {
		start := time.Now()
		err := fn(s.ctx)
		elapsed := time.Since(start)
		s.metrics.ObserveJob(name, err, elapsed)
		if err != nil {
			log.Printf("[scheduler] %s failed after %s: %v", name, elapsed.Round(time.Millisecond), err)
			return
		}
		log.Printf("[scheduler] %s done in %s", name, elapsed.Round(time.Millisecond))
	}
}
