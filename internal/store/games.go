package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/steampulse/steampulse/internal/model"
)

// UpsertGame inserts or replaces a catalog row. Genre and category children
// are written separately via AddGameGenres/AddGameCategories.
func (s *Store) UpsertGame(ctx context.Context, g model.GameDetails) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (appid, name, is_free, price, release_date, coming_soon,
			header_image, background_image, detailed_description, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, now())
		ON CONFLICT (appid) DO UPDATE SET
			name = excluded.name,
			is_free = excluded.is_free,
			price = excluded.price,
			release_date = excluded.release_date,
			coming_soon = excluded.coming_soon,
			header_image = excluded.header_image,
			background_image = excluded.background_image,
			detailed_description = excluded.detailed_description,
			updated_at = excluded.updated_at`,
		s.table("games"))
	_, err := s.pool.Exec(ctx, q,
		g.AppID, g.Name, g.IsFree, g.Price, g.ReleaseDate, g.ComingSoon,
		g.HeaderImage, g.BackgroundImage, g.DetailedDescription)
	if err != nil {
		return fmt.Errorf("store: upsert game %d: %w", g.AppID, err)
	}
	return nil
}

// AddGameGenres bulk-inserts genre tags for a game, ignoring duplicates.
func (s *Store) AddGameGenres(ctx context.Context, appid int64, genres []string) error {
	return s.addGameTags(ctx, "game_genres", "genre", appid, genres)
}

// AddGameCategories bulk-inserts category tags for a game, ignoring duplicates.
func (s *Store) AddGameCategories(ctx context.Context, appid int64, categories []string) error {
	return s.addGameTags(ctx, "game_categories", "category", appid, categories)
}

func (s *Store) addGameTags(ctx context.Context, tableName, column string, appid int64, values []string) error {
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (appid, %s)
		VALUES ($1, $2)
		ON CONFLICT (appid, %s) DO NOTHING`,
		s.table(tableName), column, column)

	batch := &pgx.Batch{}
	for _, v := range values {
		if v == "" {
			continue
		}
		batch.Queue(q, appid, v)
	}
	if batch.Len() == 0 {
		return nil
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: insert %s for %d: %w", column, appid, err)
		}
	}
	return nil
}

// Game returns the catalog row for appid with its genre/category tags, or
// ErrNotFound.
func (s *Store) Game(ctx context.Context, appid int64) (model.GameDetails, error) {
	q := fmt.Sprintf(`
		SELECT appid, name, is_free, price, COALESCE(release_date, ''),
			coming_soon, header_image, background_image, detailed_description
		FROM %s
		WHERE appid = $1`,
		s.table("games"))

	var g model.GameDetails
	err := s.pool.QueryRow(ctx, q, appid).Scan(
		&g.AppID, &g.Name, &g.IsFree, &g.Price, &g.ReleaseDate,
		&g.ComingSoon, &g.HeaderImage, &g.BackgroundImage, &g.DetailedDescription)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GameDetails{}, ErrNotFound
	}
	if err != nil {
		return model.GameDetails{}, fmt.Errorf("store: query game %d: %w", appid, err)
	}

	tags, err := s.GameTags(ctx, []int64{appid})
	if err != nil {
		return model.GameDetails{}, err
	}
	if t, ok := tags[appid]; ok {
		g.Genres = t.Genres
		g.Categories = t.Categories
	}
	return g, nil
}

// AllGames returns every catalog row ordered by name.
func (s *Store) AllGames(ctx context.Context) ([]model.GameDetails, error) {
	q := fmt.Sprintf(`
		SELECT appid, name, is_free, price, COALESCE(release_date, ''),
			coming_soon, header_image, background_image, detailed_description
		FROM %s
		ORDER BY name ASC, appid ASC`,
		s.table("games"))
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: query games: %w", err)
	}
	defer rows.Close()
	return scanGames(rows)
}

// GamesByGenre returns catalog rows tagged with the given genre.
func (s *Store) GamesByGenre(ctx context.Context, genre string) ([]model.GameDetails, error) {
	return s.gamesByTag(ctx, "game_genres", "genre", genre)
}

// GamesByCategory returns catalog rows tagged with the given category.
func (s *Store) GamesByCategory(ctx context.Context, category string) ([]model.GameDetails, error) {
	return s.gamesByTag(ctx, "game_categories", "category", category)
}

func (s *Store) gamesByTag(ctx context.Context, tagTable, column, value string) ([]model.GameDetails, error) {
	q := fmt.Sprintf(`
		SELECT g.appid, g.name, g.is_free, g.price, COALESCE(g.release_date, ''),
			g.coming_soon, g.header_image, g.background_image, g.detailed_description
		FROM %s g
		JOIN %s t ON t.appid = g.appid
		WHERE t.%s = $1
		ORDER BY g.name ASC, g.appid ASC`,
		s.table("games"), s.table(tagTable), column)
	rows, err := s.pool.Query(ctx, q, value)
	if err != nil {
		return nil, fmt.Errorf("store: query games by %s: %w", column, err)
	}
	defer rows.Close()
	return scanGames(rows)
}

// GameTags returns the genre and category tags for the given appids. Appids
// without any tags are omitted from the result.
func (s *Store) GameTags(ctx context.Context, appids []int64) (map[int64]model.GameTags, error) {
	tags := make(map[int64]model.GameTags, len(appids))
	if len(appids) == 0 {
		return tags, nil
	}

	collect := func(tableName, column string, assign func(t *model.GameTags, v string)) error {
		q := fmt.Sprintf(`
			SELECT appid, %s FROM %s WHERE appid = ANY($1) ORDER BY appid, %s`,
			column, s.table(tableName), column)
		rows, err := s.pool.Query(ctx, q, appids)
		if err != nil {
			return fmt.Errorf("store: query %s: %w", tableName, err)
		}
		defer rows.Close()
		for rows.Next() {
			var appid int64
			var v string
			if err := rows.Scan(&appid, &v); err != nil {
				return fmt.Errorf("store: scan %s: %w", tableName, err)
			}
			t := tags[appid]
			assign(&t, v)
			tags[appid] = t
		}
		return rows.Err()
	}

	if err := collect("game_genres", "genre", func(t *model.GameTags, v string) {
		t.Genres = append(t.Genres, v)
	}); err != nil {
		return nil, err
	}
	if err := collect("game_categories", "category", func(t *model.GameTags, v string) {
		t.Categories = append(t.Categories, v)
	}); err != nil {
		return nil, err
	}
	return tags, nil
}

// GamesMissingDetails returns the subset of appids that have no catalog row
// yet. Used by the metadata backfill job.
func (s *Store) GamesMissingDetails(ctx context.Context, appids []int64) ([]int64, error) {
	if len(appids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`
		SELECT candidate.appid
		FROM unnest($1::bigint[]) AS candidate(appid)
		WHERE NOT EXISTS (SELECT 1 FROM %s g WHERE g.appid = candidate.appid)`,
		s.table("games"))
	rows, err := s.pool.Query(ctx, q, appids)
	if err != nil {
		return nil, fmt.Errorf("store: query missing details: %w", err)
	}
	defer rows.Close()

	var missing []int64
	for rows.Next() {
		var appid int64
		if err := rows.Scan(&appid); err != nil {
			return nil, fmt.Errorf("store: scan missing details: %w", err)
		}
		missing = append(missing, appid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate missing details: %w", err)
	}
	return missing, nil
}

func scanGames(rows pgx.Rows) ([]model.GameDetails, error) {
	var games []model.GameDetails
	for rows.Next() {
		var g model.GameDetails
		if err := rows.Scan(
			&g.AppID, &g.Name, &g.IsFree, &g.Price, &g.ReleaseDate,
			&g.ComingSoon, &g.HeaderImage, &g.BackgroundImage, &g.DetailedDescription,
		); err != nil {
			return nil, fmt.Errorf("store: scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate games: %w", err)
	}
	return games, nil
}
