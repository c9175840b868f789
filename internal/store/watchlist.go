package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/steampulse/steampulse/internal/model"
)

// UpsertWatchlist inserts or updates a watchlist entry. On conflict the
// name, last_count, and updated_at columns are replaced.
func (s *Store) UpsertWatchlist(ctx context.Context, appid int64, name string, lastCount int64) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (appid, name, last_count, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (appid) DO UPDATE SET
			name = excluded.name,
			last_count = excluded.last_count,
			updated_at = excluded.updated_at`,
		s.table("watchlist"))
	if _, err := s.pool.Exec(ctx, q, appid, name, lastCount); err != nil {
		return fmt.Errorf("store: upsert watchlist %d: %w", appid, err)
	}
	return nil
}

// Watchlist returns all tracked titles ordered by last_count descending.
func (s *Store) Watchlist(ctx context.Context) ([]model.WatchlistEntry, error) {
	q := fmt.Sprintf(`
		SELECT appid, name, last_count, updated_at
		FROM %s
		ORDER BY last_count DESC, appid ASC`,
		s.table("watchlist"))
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: query watchlist: %w", err)
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		var e model.WatchlistEntry
		var updatedAt time.Time
		if err := rows.Scan(&e.AppID, &e.Name, &e.LastCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan watchlist: %w", err)
		}
		e.UpdatedAt = updatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate watchlist: %w", err)
	}
	return entries, nil
}

// WatchlistEntry returns the tracked entry for appid, or ErrNotFound.
func (s *Store) WatchlistEntry(ctx context.Context, appid int64) (model.WatchlistEntry, error) {
	q := fmt.Sprintf(`
		SELECT appid, name, last_count, updated_at
		FROM %s
		WHERE appid = $1`,
		s.table("watchlist"))
	var e model.WatchlistEntry
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, q, appid).Scan(&e.AppID, &e.Name, &e.LastCount, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WatchlistEntry{}, ErrNotFound
	}
	if err != nil {
		return model.WatchlistEntry{}, fmt.Errorf("store: query watchlist %d: %w", appid, err)
	}
	e.UpdatedAt = updatedAt.UTC()
	return e, nil
}

// RemoveFromWatchlist deletes an entry; raw and aggregate samples cascade.
// Removing an absent appid is a no-op.
func (s *Store) RemoveFromWatchlist(ctx context.Context, appid int64) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE appid = $1`, s.table("watchlist"))
	if _, err := s.pool.Exec(ctx, q, appid); err != nil {
		return fmt.Errorf("store: remove watchlist %d: %w", appid, err)
	}
	return nil
}
