package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/store"
)

type watchlistResponse struct {
	Watchlist []model.WatchlistEntry `json:"watchlist"`
}

// HandleWatchlist returns a handler for GET /api/watchlist.
func HandleWatchlist(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := st.Watchlist(r.Context())
		if err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		if entries == nil {
			entries = []model.WatchlistEntry{}
		}
		WriteJSON(w, http.StatusOK, watchlistResponse{Watchlist: entries})
	}
}

type addWatchlistRequest struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

type addWatchlistResponse struct {
	Entry model.WatchlistEntry `json:"entry"`
}

// HandleAddWatchlist returns a handler for POST /api/watchlist. The upsert
// is idempotent: an entry that already exists keeps its last_count and,
// when no name is supplied, its name. A missing name falls back to a
// best-effort catalog lookup before the "App <appid>" placeholder.
func HandleAddWatchlist(st Store, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addWatchlistRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		if !validAppID(req.AppID) {
			writeBadRequest(w, fmt.Sprintf("appid: must be an integer between %d and %d", minAppID, maxAppID))
			return
		}

		var lastCount int64
		existing, err := st.WatchlistEntry(r.Context(), req.AppID)
		switch {
		case err == nil:
			lastCount = existing.LastCount
			if req.Name == "" {
				req.Name = existing.Name
			}
		case !errors.Is(err, store.ErrNotFound):
			writeStorageUnavailable(w, r, err)
			return
		}

		if req.Name == "" {
			if details, err := catalog.AppDetails(r.Context(), req.AppID); err == nil && details.Name != "" {
				req.Name = details.Name
			} else {
				req.Name = fmt.Sprintf("App %d", req.AppID)
			}
		}

		if err := st.UpsertWatchlist(r.Context(), req.AppID, req.Name, lastCount); err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		entry, err := st.WatchlistEntry(r.Context(), req.AppID)
		if err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, addWatchlistResponse{Entry: entry})
	}
}

// HandleRemoveWatchlist returns a handler for DELETE /api/watchlist/{appid}.
// Raw and aggregate samples cascade with the entry; removing an absent
// appid is still a 204.
func HandleRemoveWatchlist(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appid, err := appIDPathValue(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		if err := st.RemoveFromWatchlist(r.Context(), appid); err != nil {
			writeStorageUnavailable(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
