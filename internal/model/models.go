// Package model defines domain structs shared across the persistence layer,
// the upstream adapters, and the API surface.
package model

import "time"

// WatchlistEntry is a tracked title and its most recent sample.
type WatchlistEntry struct {
	AppID     int64     `json:"appid"`
	Name      string    `json:"name"`
	LastCount int64     `json:"last_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerSample is one raw player-count observation.
type PlayerSample struct {
	AppID int64     `json:"appid"`
	TS    time.Time `json:"ts"`
	Count int64     `json:"count"`
}

// HourlyAggregate is the roll-up of raw samples within one UTC hour.
type HourlyAggregate struct {
	AppID      int64     `json:"appid"`
	HourBucket time.Time `json:"hour_bucket"`
	Avg        float64   `json:"avg"`
	Min        int64     `json:"min"`
	Max        int64     `json:"max"`
	P95        int64     `json:"p95"`
}

// DailyAggregate is the roll-up of raw samples within one UTC day.
type DailyAggregate struct {
	AppID int64   `json:"appid"`
	Day   string  `json:"day"` // YYYY-MM-DD
	Avg   float64 `json:"avg"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	P95   int64   `json:"p95"`
}

// GameDetails is the catalog record for a title.
type GameDetails struct {
	AppID               int64    `json:"appid"`
	Name                string   `json:"name"`
	IsFree              bool     `json:"is_free"`
	Price               float64  `json:"price"`
	ReleaseDate         string   `json:"release_date,omitempty"`
	ComingSoon          bool     `json:"coming_soon"`
	HeaderImage         string   `json:"header_image,omitempty"`
	BackgroundImage     string   `json:"background_image,omitempty"`
	DetailedDescription string   `json:"detailed_description,omitempty"`
	Genres              []string `json:"genres,omitempty"`
	Categories          []string `json:"categories,omitempty"`
}

// GameTags holds the genre/category tags of a title.
type GameTags struct {
	Genres     []string `json:"genres"`
	Categories []string `json:"categories"`
}

// DealInfo is one store offer for a title.
type DealInfo struct {
	AppID       int64   `json:"appid,omitempty"`
	Title       string  `json:"title"`
	Shop        string  `json:"shop"`
	PriceNew    float64 `json:"price_new"`
	PriceOld    float64 `json:"price_old"`
	DiscountPct int     `json:"discount_pct"`
	Currency    string  `json:"currency,omitempty"`
	URL         string  `json:"url,omitempty"`
}

// PlayerSummary is the public profile of a Steam user.
type PlayerSummary struct {
	SteamID      string `json:"steamid"`
	PersonaName  string `json:"personaname"`
	ProfileURL   string `json:"profileurl"`
	Avatar       string `json:"avatar"`
	PersonaState int    `json:"personastate"`
	CountryCode  string `json:"country_code,omitempty"`
	TimeCreated  int64  `json:"time_created,omitempty"`
}

// OwnedGame is one entry of a user's library.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int64  `json:"playtime_forever"` // minutes
	Playtime2Weeks  int64  `json:"playtime_2weeks,omitempty"`
	IconURL         string `json:"icon_url,omitempty"`
}

// Badge is one profile badge of a Steam user.
type Badge struct {
	BadgeID        int64 `json:"badgeid"`
	Level          int64 `json:"level"`
	CompletionTime int64 `json:"completion_time"`
	XP             int64 `json:"xp"`
	Scarcity       int64 `json:"scarcity"`
}

// BadgeSet is the badge payload of a user, including derived level info.
type BadgeSet struct {
	Badges      []Badge `json:"badges"`
	PlayerXP    int64   `json:"player_xp"`
	PlayerLevel int64   `json:"player_level"`
}
