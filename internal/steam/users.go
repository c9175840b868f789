package steam

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/netutil"
)

// Users serves the key-gated player endpoints.
type Users struct {
	c *Client
}

// NewUsers returns the user provider. It fails when the client has no API
// key, since every call here requires one.
func NewUsers(c *Client) (*Users, error) {
	if !c.HasAPIKey() {
		return nil, errors.New("steam: user provider requires STEAM_API_KEY")
	}
	return &Users{c: c}, nil
}

func (u *Users) apiGet(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", u.c.apiKey)
	full := u.c.apiURL + path + "?" + q.Encode()
	return netutil.DoWithRetry(ctx, func(ctx context.Context) error {
		return netutil.GetJSON(ctx, u.c.http, full, out)
	})
}

type ownedGamesResp struct {
	Response struct {
		GameCount int `json:"game_count"`
		Games     []struct {
			AppID           int64  `json:"appid"`
			Name            string `json:"name"`
			PlaytimeForever int64  `json:"playtime_forever"`
			Playtime2Weeks  int64  `json:"playtime_2weeks"`
			ImgIconURL      string `json:"img_icon_url"`
		} `json:"games"`
	} `json:"response"`
}

// OwnedGames returns the user's library with names and playtimes. Private
// profiles come back as an empty list, matching the upstream behavior.
func (u *Users) OwnedGames(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
	q := url.Values{}
	q.Set("steamid", steamID)
	q.Set("include_appinfo", "1")
	q.Set("include_played_free_games", "1")

	var out ownedGamesResp
	if err := u.apiGet(ctx, "/IPlayerService/GetOwnedGames/v1/", q, &out); err != nil {
		return nil, fmt.Errorf("steam: owned games %s: %w", steamID, err)
	}
	games := make([]model.OwnedGame, 0, len(out.Response.Games))
	for _, g := range out.Response.Games {
		games = append(games, model.OwnedGame{
			AppID:           g.AppID,
			Name:            g.Name,
			PlaytimeForever: g.PlaytimeForever,
			Playtime2Weeks:  g.Playtime2Weeks,
			IconURL:         iconURL(g.AppID, g.ImgIconURL),
		})
	}
	return games, nil
}

// RecentlyPlayed returns the games the user played in the last two weeks.
func (u *Users) RecentlyPlayed(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
	q := url.Values{}
	q.Set("steamid", steamID)

	var out ownedGamesResp
	if err := u.apiGet(ctx, "/IPlayerService/GetRecentlyPlayedGames/v1/", q, &out); err != nil {
		return nil, fmt.Errorf("steam: recently played %s: %w", steamID, err)
	}
	games := make([]model.OwnedGame, 0, len(out.Response.Games))
	for _, g := range out.Response.Games {
		games = append(games, model.OwnedGame{
			AppID:           g.AppID,
			Name:            g.Name,
			PlaytimeForever: g.PlaytimeForever,
			Playtime2Weeks:  g.Playtime2Weeks,
			IconURL:         iconURL(g.AppID, g.ImgIconURL),
		})
	}
	return games, nil
}

type playerSummariesResp struct {
	Response struct {
		Players []struct {
			SteamID        string `json:"steamid"`
			PersonaName    string `json:"personaname"`
			ProfileURL     string `json:"profileurl"`
			AvatarFull     string `json:"avatarfull"`
			PersonaState   int    `json:"personastate"`
			LocCountryCode string `json:"loccountrycode"`
			TimeCreated    int64  `json:"timecreated"`
		} `json:"players"`
	} `json:"response"`
}

// PlayerSummary returns the user's public profile, or ErrNotFound for an
// unknown SteamID.
func (u *Users) PlayerSummary(ctx context.Context, steamID string) (model.PlayerSummary, error) {
	q := url.Values{}
	q.Set("steamids", steamID)

	var out playerSummariesResp
	if err := u.apiGet(ctx, "/ISteamUser/GetPlayerSummaries/v2/", q, &out); err != nil {
		return model.PlayerSummary{}, fmt.Errorf("steam: player summary %s: %w", steamID, err)
	}
	if len(out.Response.Players) == 0 {
		return model.PlayerSummary{}, fmt.Errorf("steam: player summary %s: %w", steamID, ErrNotFound)
	}
	p := out.Response.Players[0]
	return model.PlayerSummary{
		SteamID:      p.SteamID,
		PersonaName:  p.PersonaName,
		ProfileURL:   p.ProfileURL,
		Avatar:       p.AvatarFull,
		PersonaState: p.PersonaState,
		CountryCode:  p.LocCountryCode,
		TimeCreated:  p.TimeCreated,
	}, nil
}

type badgesResp struct {
	Response struct {
		Badges []struct {
			BadgeID        int64 `json:"badgeid"`
			Level          int64 `json:"level"`
			CompletionTime int64 `json:"completion_time"`
			XP             int64 `json:"xp"`
			Scarcity       int64 `json:"scarcity"`
		} `json:"badges"`
		PlayerXP    int64 `json:"player_xp"`
		PlayerLevel int64 `json:"player_level"`
	} `json:"response"`
}

// Badges returns the user's badges and level progression.
func (u *Users) Badges(ctx context.Context, steamID string) (model.BadgeSet, error) {
	q := url.Values{}
	q.Set("steamid", steamID)

	var out badgesResp
	if err := u.apiGet(ctx, "/IPlayerService/GetBadges/v1/", q, &out); err != nil {
		return model.BadgeSet{}, fmt.Errorf("steam: badges %s: %w", steamID, err)
	}
	set := model.BadgeSet{
		Badges:      make([]model.Badge, 0, len(out.Response.Badges)),
		PlayerXP:    out.Response.PlayerXP,
		PlayerLevel: out.Response.PlayerLevel,
	}
	for _, b := range out.Response.Badges {
		set.Badges = append(set.Badges, model.Badge{
			BadgeID:        b.BadgeID,
			Level:          b.Level,
			CompletionTime: b.CompletionTime,
			XP:             b.XP,
			Scarcity:       b.Scarcity,
		})
	}
	return set, nil
}

type resolveVanityResp struct {
	Response struct {
		SteamID string `json:"steamid"`
		Success int    `json:"success"`
	} `json:"response"`
}

// ResolveVanity maps a vanity name to a SteamID64. An unknown name returns
// "" without an error.
func (u *Users) ResolveVanity(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("vanityurl", name)

	var out resolveVanityResp
	if err := u.apiGet(ctx, "/ISteamUser/ResolveVanityURL/v1/", q, &out); err != nil {
		return "", fmt.Errorf("steam: resolve vanity %q: %w", name, err)
	}
	if out.Response.Success != 1 {
		return "", nil
	}
	return out.Response.SteamID, nil
}

func iconURL(appid int64, hash string) string {
	if hash == "" {
		return ""
	}
	return fmt.Sprintf("https://media.steampowered.com/steamcommunity/public/images/apps/%d/%s.jpg", appid, hash)
}
