package store

import (
	"context"
	"fmt"
	"time"

	"github.com/steampulse/steampulse/internal/model"
)

const (
	// historyLimitMax is the hard ceiling on raw history reads regardless
	// of the caller-supplied limit.
	historyLimitMax     = 10000
	historyLimitDefault = 1000
)

// InsertPlayerCount records one raw sample. Duplicate (appid, ts) pairs are
// ignored; an appid without a watchlist row is rejected by the foreign key.
func (s *Store) InsertPlayerCount(ctx context.Context, appid int64, ts time.Time, count int64) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (appid, ts, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (appid, ts) DO NOTHING`,
		s.table("player_counts"))
	if _, err := s.pool.Exec(ctx, q, appid, ts.UTC(), count); err != nil {
		return fmt.Errorf("store: insert player count %d: %w", appid, err)
	}
	return nil
}

// PlayerCountHistory returns the most recent raw samples for appid, newest
// first. The limit is clamped to historyLimitMax inside this layer.
func (s *Store) PlayerCountHistory(ctx context.Context, appid int64, limit int) ([]model.PlayerSample, error) {
	limit = clampHistoryLimit(limit)

	q := fmt.Sprintf(`
		SELECT appid, ts, count
		FROM %s
		WHERE appid = $1
		ORDER BY ts DESC
		LIMIT $2`,
		s.table("player_counts"))
	rows, err := s.pool.Query(ctx, q, appid, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query history %d: %w", appid, err)
	}
	defer rows.Close()

	var samples []model.PlayerSample
	for rows.Next() {
		var p model.PlayerSample
		var ts time.Time
		if err := rows.Scan(&p.AppID, &ts, &p.Count); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		p.TS = ts.UTC()
		samples = append(samples, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate history: %w", err)
	}
	return samples, nil
}

// clampHistoryLimit bounds caller-supplied limits to [1, historyLimitMax].
func clampHistoryLimit(limit int) int {
	if limit < 1 {
		return historyLimitDefault
	}
	if limit > historyLimitMax {
		return historyLimitMax
	}
	return limit
}
