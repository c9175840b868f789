package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/steampulse/steampulse/internal/model"
)

const dayLayout = "2006-01-02"

func hourBucket(ts time.Time) time.Time { return ts.UTC().Truncate(time.Hour) }
func dayKey(ts time.Time) string        { return ts.UTC().Format(dayLayout) }

// RollupHourly aggregates raw samples with ts in [since, until) into hourly
// rows. Buckets are UTC hours. Re-running over the same window rewrites the
// same rows, so the operation is idempotent. If appids is empty every app in
// the window is rolled up. Returns the number of buckets written.
func (s *Store) RollupHourly(ctx context.Context, since, until time.Time, appids ...int64) (int, error) {
	samples, err := s.rawSamples(ctx, since, until, appids)
	if err != nil {
		return 0, err
	}

	type key struct {
		appid  int64
		bucket time.Time
	}
	groups := make(map[key][]int64)
	for _, smp := range samples {
		k := key{appid: smp.AppID, bucket: hourBucket(smp.TS)}
		groups[k] = append(groups[k], smp.Count)
	}
	if len(groups) == 0 {
		return 0, nil
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (appid, hour_bucket, avg, min, max, p95)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (appid, hour_bucket) DO UPDATE SET
			avg = excluded.avg,
			min = excluded.min,
			max = excluded.max,
			p95 = excluded.p95`,
		s.table("player_counts_hourly"))

	batch := &pgx.Batch{}
	for k, counts := range groups {
		st := aggregateCounts(counts)
		batch.Queue(q, k.appid, k.bucket, st.Avg, st.Min, st.Max, st.P95)
	}
	if err := s.sendRollupBatch(ctx, batch, "hourly"); err != nil {
		return 0, err
	}
	return len(groups), nil
}

// RollupDaily aggregates raw samples with ts in [since, until) into daily
// rows keyed by UTC calendar day. Idempotent like RollupHourly. Returns the
// number of buckets written.
func (s *Store) RollupDaily(ctx context.Context, since, until time.Time, appids ...int64) (int, error) {
	samples, err := s.rawSamples(ctx, since, until, appids)
	if err != nil {
		return 0, err
	}

	type key struct {
		appid int64
		day   string
	}
	groups := make(map[key][]int64)
	for _, smp := range samples {
		k := key{appid: smp.AppID, day: dayKey(smp.TS)}
		groups[k] = append(groups[k], smp.Count)
	}
	if len(groups) == 0 {
		return 0, nil
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (appid, day, avg, min, max, p95)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (appid, day) DO UPDATE SET
			avg = excluded.avg,
			min = excluded.min,
			max = excluded.max,
			p95 = excluded.p95`,
		s.table("player_counts_daily"))

	batch := &pgx.Batch{}
	for k, counts := range groups {
		st := aggregateCounts(counts)
		batch.Queue(q, k.appid, k.day, st.Avg, st.Min, st.Max, st.P95)
	}
	if err := s.sendRollupBatch(ctx, batch, "daily"); err != nil {
		return 0, err
	}
	return len(groups), nil
}

func (s *Store) rawSamples(ctx context.Context, since, until time.Time, appids []int64) ([]model.PlayerSample, error) {
	q := fmt.Sprintf(`
		SELECT appid, ts, count FROM %s
		WHERE ts >= $1 AND ts < $2`,
		s.table("player_counts"))
	args := []any{since.UTC(), until.UTC()}
	if len(appids) > 0 {
		q += " AND appid = ANY($3)"
		args = append(args, appids)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query raw samples: %w", err)
	}
	defer rows.Close()

	var samples []model.PlayerSample
	for rows.Next() {
		var smp model.PlayerSample
		if err := rows.Scan(&smp.AppID, &smp.TS, &smp.Count); err != nil {
			return nil, fmt.Errorf("store: scan raw sample: %w", err)
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate raw samples: %w", err)
	}
	return samples, nil
}

func (s *Store) sendRollupBatch(ctx context.Context, batch *pgx.Batch, kind string) error {
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: upsert %s aggregate: %w", kind, err)
		}
	}
	return nil
}

// HourlyAggregates returns hourly rows for appid with hour_bucket >= since,
// oldest first.
func (s *Store) HourlyAggregates(ctx context.Context, appid int64, since time.Time) ([]model.HourlyAggregate, error) {
	q := fmt.Sprintf(`
		SELECT appid, hour_bucket, avg, min, max, p95 FROM %s
		WHERE appid = $1 AND hour_bucket >= $2
		ORDER BY hour_bucket ASC`,
		s.table("player_counts_hourly"))
	rows, err := s.pool.Query(ctx, q, appid, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: query hourly aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []model.HourlyAggregate
	for rows.Next() {
		var a model.HourlyAggregate
		if err := rows.Scan(&a.AppID, &a.HourBucket, &a.Avg, &a.Min, &a.Max, &a.P95); err != nil {
			return nil, fmt.Errorf("store: scan hourly aggregate: %w", err)
		}
		a.HourBucket = a.HourBucket.UTC()
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate hourly aggregates: %w", err)
	}
	return aggs, nil
}

// DailyAggregates returns daily rows for appid covering UTC days >= since,
// oldest first.
func (s *Store) DailyAggregates(ctx context.Context, appid int64, since time.Time) ([]model.DailyAggregate, error) {
	q := fmt.Sprintf(`
		SELECT appid, day, avg, min, max, p95 FROM %s
		WHERE appid = $1 AND day >= $2
		ORDER BY day ASC`,
		s.table("player_counts_daily"))
	rows, err := s.pool.Query(ctx, q, appid, dayKey(since))
	if err != nil {
		return nil, fmt.Errorf("store: query daily aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []model.DailyAggregate
	for rows.Next() {
		var a model.DailyAggregate
		if err := rows.Scan(&a.AppID, &a.Day, &a.Avg, &a.Min, &a.Max, &a.P95); err != nil {
			return nil, fmt.Errorf("store: scan daily aggregate: %w", err)
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate daily aggregates: %w", err)
	}
	return aggs, nil
}

// PruneRaw deletes raw samples older than the cutoff and returns the number
// of rows removed.
func (s *Store) PruneRaw(ctx context.Context, olderThan time.Time) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE ts < $1`, s.table("player_counts"))
	tag, err := s.pool.Exec(ctx, q, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: prune raw samples: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PruneHourly deletes hourly aggregates older than the cutoff.
func (s *Store) PruneHourly(ctx context.Context, olderThan time.Time) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE hour_bucket < $1`, s.table("player_counts_hourly"))
	tag, err := s.pool.Exec(ctx, q, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: prune hourly aggregates: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PruneDaily deletes daily aggregates for UTC days before the cutoff.
func (s *Store) PruneDaily(ctx context.Context, olderThan time.Time) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE day < $1`, s.table("player_counts_daily"))
	tag, err := s.pool.Exec(ctx, q, dayKey(olderThan))
	if err != nil {
		return 0, fmt.Errorf("store: prune daily aggregates: %w", err)
	}
	return tag.RowsAffected(), nil
}
