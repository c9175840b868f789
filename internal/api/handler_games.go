package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/steam"
	"github.com/steampulse/steampulse/internal/store"
)

type gamesResponse struct {
	Games []model.GameDetails `json:"games"`
}

// HandleGames returns a handler for GET /api/games. An optional genre or
// category query parameter narrows the catalog to titles carrying that tag.
func HandleGames(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		genre := r.URL.Query().Get("genre")
		category := r.URL.Query().Get("category")
		if genre != "" && category != "" {
			writeBadRequest(w, "genre and category filters are mutually exclusive")
			return
		}

		var (
			games []model.GameDetails
			err   error
		)
		switch {
		case genre != "":
			games, err = st.GamesByGenre(r.Context(), genre)
		case category != "":
			games, err = st.GamesByCategory(r.Context(), category)
		default:
			games, err = st.AllGames(r.Context())
		}
		if err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		if games == nil {
			games = []model.GameDetails{}
		}
		WriteJSON(w, http.StatusOK, gamesResponse{Games: games})
	}
}

// HandleGame returns a handler for GET /api/games/{appid}. The store is the
// first stop; on a miss the catalog is queried live and the result cached
// best-effort so the next read is local.
func HandleGame(st Store, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appid, err := appIDPathValue(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		g, err := st.Game(r.Context(), appid)
		if err == nil {
			WriteJSON(w, http.StatusOK, g)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			writeStorageUnavailable(w, r, err)
			return
		}

		g, err = catalog.AppDetails(r.Context(), appid)
		if errors.Is(err, steam.ErrNotFound) {
			writeNotFound(w, "game not found")
			return
		}
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		cacheGame(r.Context(), st, g)
		WriteJSON(w, http.StatusOK, g)
	}
}

// cacheGame persists a live catalog result. Failures only cost the cache,
// never the response, so they are logged and swallowed.
func cacheGame(ctx context.Context, st Store, g model.GameDetails) {
	if err := st.UpsertGame(ctx, g); err != nil {
		log.Printf("[api] cache game %d: %v", g.AppID, err)
		return
	}
	if err := st.AddGameGenres(ctx, g.AppID, g.Genres); err != nil {
		log.Printf("[api] cache genres %d: %v", g.AppID, err)
	}
	if err := st.AddGameCategories(ctx, g.AppID, g.Categories); err != nil {
		log.Printf("[api] cache categories %d: %v", g.AppID, err)
	}
}

type currentPlayersResponse struct {
	AppID          int64  `json:"appid"`
	CurrentPlayers int64  `json:"current_players"`
	Source         string `json:"source"`
}

// HandleCurrentPlayers returns a handler for
// GET /api/games/{appid}/current-players. The live count wins; when the
// upstream fails the stored last_count answers with source "cache", and a
// title with no stored entry is a 503.
func HandleCurrentPlayers(st Store, players Players) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appid, err := appIDPathValue(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		count, err := players.CurrentPlayers(r.Context(), appid)
		if err == nil {
			WriteJSON(w, http.StatusOK, currentPlayersResponse{AppID: appid, CurrentPlayers: count, Source: "live"})
			return
		}
		log.Printf("[api] current players %d: live lookup failed: %v", appid, err)

		entry, serr := st.WatchlistEntry(r.Context(), appid)
		if serr != nil {
			if !errors.Is(serr, store.ErrNotFound) {
				log.Printf("[api] current players %d: cache lookup failed: %v", appid, serr)
			}
			WriteError(w, http.StatusServiceUnavailable, "player count unavailable")
			return
		}
		WriteJSON(w, http.StatusOK, currentPlayersResponse{AppID: appid, CurrentPlayers: entry.LastCount, Source: "cache"})
	}
}

type historyResponse struct {
	AppID   int64                `json:"appid"`
	History []model.PlayerSample `json:"history"`
}

// HandleHistory returns a handler for GET /api/games/{appid}/history.
// The limit parameter is passed through; the store clamps it.
func HandleHistory(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appid, err := appIDPathValue(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		limit, err := historyLimit(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		samples, err := st.PlayerCountHistory(r.Context(), appid, limit)
		if err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		if samples == nil {
			samples = []model.PlayerSample{}
		}
		WriteJSON(w, http.StatusOK, historyResponse{AppID: appid, History: samples})
	}
}

type hourlyHistoryResponse struct {
	AppID  int64                   `json:"appid"`
	Hourly []model.HourlyAggregate `json:"hourly"`
}

// HandleHourlyHistory returns a handler for
// GET /api/games/{appid}/history/hourly?days= (default 7).
func HandleHourlyHistory(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appid, err := appIDPathValue(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		days, err := intQueryInRange(r, "days", 7, 1, 365)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		since := time.Now().UTC().AddDate(0, 0, -days)
		rows, err := st.HourlyAggregates(r.Context(), appid, since)
		if err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		if rows == nil {
			rows = []model.HourlyAggregate{}
		}
		WriteJSON(w, http.StatusOK, hourlyHistoryResponse{AppID: appid, Hourly: rows})
	}
}

type dailyHistoryResponse struct {
	AppID int64                  `json:"appid"`
	Daily []model.DailyAggregate `json:"daily"`
}

// HandleDailyHistory returns a handler for
// GET /api/games/{appid}/history/daily?days= (default 30).
func HandleDailyHistory(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appid, err := appIDPathValue(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		days, err := intQueryInRange(r, "days", 30, 1, 365)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		since := time.Now().UTC().AddDate(0, 0, -days)
		rows, err := st.DailyAggregates(r.Context(), appid, since)
		if err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		if rows == nil {
			rows = []model.DailyAggregate{}
		}
		WriteJSON(w, http.StatusOK, dailyHistoryResponse{AppID: appid, Daily: rows})
	}
}

// maxTagsBatch bounds one tags lookup.
const maxTagsBatch = 100

type tagsBatchRequest struct {
	AppIDs []int64 `json:"appids"`
}

type tagsBatchResponse struct {
	Tags map[int64]model.GameTags `json:"tags"`
}

// HandleGameTagsBatch returns a handler for POST /api/games/tags/batch.
// Accepts 1..100 appids; appids with no stored tags are omitted from the
// result map.
func HandleGameTagsBatch(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagsBatchRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		if len(req.AppIDs) < 1 || len(req.AppIDs) > maxTagsBatch {
			writeBadRequest(w, fmt.Sprintf("appids: must contain between 1 and %d entries", maxTagsBatch))
			return
		}
		for _, id := range req.AppIDs {
			if !validAppID(id) {
				writeBadRequest(w, fmt.Sprintf("appids: %d is outside %d..%d", id, minAppID, maxAppID))
				return
			}
		}

		tags, err := st.GameTags(r.Context(), req.AppIDs)
		if err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, tagsBatchResponse{Tags: tags})
	}
}
