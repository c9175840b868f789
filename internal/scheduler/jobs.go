package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steampulse/steampulse/internal/steam"
)

// maxSampleConcurrency bounds the parallel player-count fetches per run.
const maxSampleConcurrency = 10

// samplePlayerCounts fetches the live player count for every watchlist
// entry and stores one sample per app, all stamped with the same
// timestamp. A failed fetch skips that app only.
func (s *Scheduler) samplePlayerCounts(ctx context.Context) error {
	entries, err := s.store.Watchlist(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	s.metrics.SetWatchlistSize(len(entries))
	if len(entries) == 0 {
		return nil
	}

	jobTS := s.now().UTC()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxSampleConcurrency)
	for _, entry := range entries {
		entry := entry
		eg.Go(func() error {
			count, err := s.players.CurrentPlayers(egCtx, entry.AppID)
			if err != nil {
				s.metrics.ObserveSample(err)
				log.Printf("[scheduler] sample %d (%s): %v", entry.AppID, entry.Name, err)
				return nil
			}
			if err := s.store.InsertPlayerCount(egCtx, entry.AppID, jobTS, count); err != nil {
				s.metrics.ObserveSample(err)
				log.Printf("[scheduler] store sample %d: %v", entry.AppID, err)
				return nil
			}
			if err := s.store.UpsertWatchlist(egCtx, entry.AppID, entry.Name, count); err != nil {
				log.Printf("[scheduler] update last count %d: %v", entry.AppID, err)
				return nil
			}
			s.metrics.ObserveSample(nil)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// refreshWatchlist replaces the tracked set with the current top-N chart.
// Apps already tracked keep their last known count; new apps are seeded
// with the count the chart reports.
func (s *Scheduler) refreshWatchlist(ctx context.Context) error {
	chart, err := s.catalog.MostPlayed(ctx, s.cfg.WatchlistTopN)
	if err != nil {
		return fmt.Errorf("most played: %w", err)
	}

	existing, err := s.store.Watchlist(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	known := make(map[int64]int64, len(existing))
	for _, e := range existing {
		known[e.AppID] = e.LastCount
	}

	var failed int
	for _, entry := range chart {
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("App %d", entry.AppID)
		}
		lastCount, ok := known[entry.AppID]
		if !ok {
			lastCount = entry.CurrentPlayers
		}
		if err := s.store.UpsertWatchlist(ctx, entry.AppID, name, lastCount); err != nil {
			failed++
			log.Printf("[scheduler] upsert watchlist %d: %v", entry.AppID, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d watchlist upserts failed", failed, len(chart))
	}
	log.Printf("[scheduler] watchlist refreshed, %d apps tracked", len(chart))
	return nil
}

// backfillGameMetadata fetches catalog details for watchlist apps that
// have no games row yet. Fetches run one at a time; the storefront rate
// limits aggressive callers.
func (s *Scheduler) backfillGameMetadata(ctx context.Context) error {
	entries, err := s.store.Watchlist(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	appids := make([]int64, len(entries))
	for i, e := range entries {
		appids[i] = e.AppID
	}

	missing, err := s.store.GamesMissingDetails(ctx, appids)
	if err != nil {
		return fmt.Errorf("missing details: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}

	var filled int
	for _, appid := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		details, err := s.catalog.AppDetails(ctx, appid)
		if err != nil {
			if errors.Is(err, steam.ErrNotFound) {
				log.Printf("[scheduler] backfill %d: no storefront entry", appid)
				continue
			}
			log.Printf("[scheduler] backfill %d: %v", appid, err)
			continue
		}
		if err := s.store.UpsertGame(ctx, details); err != nil {
			log.Printf("[scheduler] backfill store %d: %v", appid, err)
			continue
		}
		if err := s.store.AddGameGenres(ctx, appid, details.Genres); err != nil {
			log.Printf("[scheduler] backfill genres %d: %v", appid, err)
		}
		if err := s.store.AddGameCategories(ctx, appid, details.Categories); err != nil {
			log.Printf("[scheduler] backfill categories %d: %v", appid, err)
		}
		filled++
	}
	log.Printf("[scheduler] backfilled %d of %d missing games", filled, len(missing))
	return nil
}

// rollupHourly aggregates the previous two full UTC hours. The window
// overlaps the prior run so late samples still land; upserts make the
// overlap harmless.
func (s *Scheduler) rollupHourly(ctx context.Context) error {
	until := s.now().UTC().Truncate(time.Hour)
	since := until.Add(-2 * time.Hour)
	n, err := s.store.RollupHourly(ctx, since, until)
	if err != nil {
		return fmt.Errorf("rollup hourly: %w", err)
	}
	log.Printf("[scheduler] hourly rollup wrote %d buckets", n)
	return nil
}

// rollupDaily aggregates yesterday's full UTC day.
func (s *Scheduler) rollupDaily(ctx context.Context) error {
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.Add(-24 * time.Hour)
	n, err := s.store.RollupDaily(ctx, since, today)
	if err != nil {
		return fmt.Errorf("rollup daily: %w", err)
	}
	log.Printf("[scheduler] daily rollup wrote %d buckets", n)
	return nil
}

func (s *Scheduler) pruneRaw(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.cfg.RetentionRaw)
	n, err := s.store.PruneRaw(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune raw: %w", err)
	}
	log.Printf("[scheduler] pruned %d raw samples", n)
	return nil
}

func (s *Scheduler) pruneHourly(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.cfg.RetentionHourly)
	n, err := s.store.PruneHourly(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune hourly: %w", err)
	}
	log.Printf("[scheduler] pruned %d hourly aggregates", n)
	return nil
}

func (s *Scheduler) pruneDaily(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.cfg.RetentionDaily)
	n, err := s.store.PruneDaily(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune daily: %w", err)
	}
	log.Printf("[scheduler] pruned %d daily aggregates", n)
	return nil
}
