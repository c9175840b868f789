package api

import (
	"errors"
	"net/http"

	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/steam"
)

type mostPlayedResponse struct {
	Games []steam.MostPlayedEntry `json:"games"`
}

// HandleMostPlayed returns a handler for GET /api/steam/most-played?limit=
// (default 20).
func HandleMostPlayed(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intQueryInRange(r, "limit", 20, 1, 100)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		entries, err := catalog.MostPlayed(r.Context(), limit)
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		if entries == nil {
			entries = []steam.MostPlayedEntry{}
		}
		WriteJSON(w, http.StatusOK, mostPlayedResponse{Games: entries})
	}
}

type comingSoonResponse struct {
	Games []steam.ComingSoonEntry `json:"games"`
}

// HandleComingSoon returns a handler for GET /api/steam/coming-soon.
func HandleComingSoon(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := catalog.ComingSoon(r.Context())
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		if entries == nil {
			entries = []steam.ComingSoonEntry{}
		}
		WriteJSON(w, http.StatusOK, comingSoonResponse{Games: entries})
	}
}

// requireUsers answers 503 when the Steam Web API key is not configured;
// the user routes stay registered so the client sees a clear status rather
// than a 404.
func requireUsers(w http.ResponseWriter, users Users) bool {
	if users == nil {
		WriteError(w, http.StatusServiceUnavailable, "steam user API not configured")
		return false
	}
	return true
}

// resolvePlayer turns the {steamid} path segment into a SteamID64. The
// segment may be a SteamID64, a vanity name, or a community profile URL;
// vanity names resolve through the user provider. On failure the response
// is already written.
func resolvePlayer(w http.ResponseWriter, r *http.Request, users Users) (string, bool) {
	ref, err := steam.ParsePlayerRef(r.PathValue("steamid"))
	if err != nil {
		writeBadRequest(w, "steamid: must be a SteamID64, a vanity name, or a community profile URL")
		return "", false
	}
	if ref.SteamID != "" {
		return ref.SteamID, true
	}

	id, err := users.ResolveVanity(r.Context(), ref.Vanity)
	if err != nil {
		writeUpstreamUnavailable(w, r, err)
		return "", false
	}
	if id == "" {
		writeNotFound(w, "vanity name not found")
		return "", false
	}
	return id, true
}

// HandleSteamPlayer returns a handler for GET /api/steam/player/{steamid}.
func HandleSteamPlayer(users Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireUsers(w, users) {
			return
		}
		id, ok := resolvePlayer(w, r, users)
		if !ok {
			return
		}

		summary, err := users.PlayerSummary(r.Context(), id)
		if errors.Is(err, steam.ErrNotFound) {
			writeNotFound(w, "player not found")
			return
		}
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}

type playerGamesResponse struct {
	SteamID string            `json:"steamid"`
	Games   []model.OwnedGame `json:"games"`
}

// HandleSteamPlayerGames returns a handler for
// GET /api/steam/player/{steamid}/games.
func HandleSteamPlayerGames(users Users) http.HandlerFunc {
	return playerGamesHandler(users, func(u Users, r *http.Request, id string) ([]model.OwnedGame, error) {
		return u.OwnedGames(r.Context(), id)
	})
}

// HandleSteamPlayerRecent returns a handler for
// GET /api/steam/player/{steamid}/recent.
func HandleSteamPlayerRecent(users Users) http.HandlerFunc {
	return playerGamesHandler(users, func(u Users, r *http.Request, id string) ([]model.OwnedGame, error) {
		return u.RecentlyPlayed(r.Context(), id)
	})
}

func playerGamesHandler(users Users, fetch func(Users, *http.Request, string) ([]model.OwnedGame, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireUsers(w, users) {
			return
		}
		id, ok := resolvePlayer(w, r, users)
		if !ok {
			return
		}

		games, err := fetch(users, r, id)
		if errors.Is(err, steam.ErrNotFound) {
			writeNotFound(w, "player not found")
			return
		}
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		if games == nil {
			games = []model.OwnedGame{}
		}
		WriteJSON(w, http.StatusOK, playerGamesResponse{SteamID: id, Games: games})
	}
}

// HandleSteamPlayerBadges returns a handler for
// GET /api/steam/player/{steamid}/badges.
func HandleSteamPlayerBadges(users Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireUsers(w, users) {
			return
		}
		id, ok := resolvePlayer(w, r, users)
		if !ok {
			return
		}

		badges, err := users.Badges(r.Context(), id)
		if errors.Is(err, steam.ErrNotFound) {
			writeNotFound(w, "player not found")
			return
		}
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, badges)
	}
}
