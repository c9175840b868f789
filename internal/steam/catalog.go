package steam

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/netutil"
)

// maxConcurrentFetches bounds the enrichment fan-out per call.
const maxConcurrentFetches = 10

// Catalog serves storefront catalog lookups.
type Catalog struct {
	c *Client
}

// NewCatalog returns the catalog provider backed by the given client.
func NewCatalog(c *Client) *Catalog {
	return &Catalog{c: c}
}

type appDetailsEnvelope struct {
	Success bool           `json:"success"`
	Data    appDetailsData `json:"data"`
}

type appDetailsData struct {
	Name                string `json:"name"`
	IsFree              bool   `json:"is_free"`
	DetailedDescription string `json:"detailed_description"`
	HeaderImage         string `json:"header_image"`
	Background          string `json:"background"`
	PriceOverview       *struct {
		Currency        string `json:"currency"`
		Final           int64  `json:"final"`
		DiscountPercent int    `json:"discount_percent"`
	} `json:"price_overview"`
	Genres []struct {
		Description string `json:"description"`
	} `json:"genres"`
	Categories []struct {
		Description string `json:"description"`
	} `json:"categories"`
	ReleaseDate struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
}

func (d appDetailsData) toModel(appid int64) model.GameDetails {
	g := model.GameDetails{
		AppID:               appid,
		Name:                d.Name,
		IsFree:              d.IsFree,
		ReleaseDate:         d.ReleaseDate.Date,
		ComingSoon:          d.ReleaseDate.ComingSoon,
		HeaderImage:         d.HeaderImage,
		BackgroundImage:     d.Background,
		DetailedDescription: stripTags(d.DetailedDescription),
	}
	if d.PriceOverview != nil {
		g.Price = float64(d.PriceOverview.Final) / 100
	}
	for _, genre := range d.Genres {
		if genre.Description != "" {
			g.Genres = append(g.Genres, genre.Description)
		}
	}
	for _, cat := range d.Categories {
		if cat.Description != "" {
			g.Categories = append(g.Categories, cat.Description)
		}
	}
	return g
}

// AppDetails fetches the storefront record for an app, localized with the
// configured country and language. Apps the storefront does not know map to
// ErrNotFound.
func (cat *Catalog) AppDetails(ctx context.Context, appid int64) (model.GameDetails, error) {
	id := strconv.FormatInt(appid, 10)
	q := url.Values{}
	q.Set("appids", id)
	q.Set("cc", cat.c.country)
	q.Set("l", cat.c.language)
	u := cat.c.storeURL + "/api/appdetails?" + q.Encode()

	out := make(map[string]appDetailsEnvelope, 1)
	err := netutil.DoWithRetry(ctx, func(ctx context.Context) error {
		return netutil.GetJSON(ctx, cat.c.http, u, &out)
	})
	if err != nil {
		return model.GameDetails{}, fmt.Errorf("steam: app details %d: %w", appid, err)
	}
	env, ok := out[id]
	if !ok || !env.Success {
		return model.GameDetails{}, fmt.Errorf("steam: app details %d: %w", appid, ErrNotFound)
	}
	return env.Data.toModel(appid), nil
}

// MostPlayedEntry is one row of the most-played chart, enriched with
// storefront details when available.
type MostPlayedEntry struct {
	Rank           int     `json:"rank"`
	AppID          int64   `json:"appid"`
	CurrentPlayers int64   `json:"current_players"`
	PeakInGame     int64   `json:"peak_in_game"`
	Name           string  `json:"name,omitempty"`
	IsFree         bool    `json:"is_free,omitempty"`
	Price          float64 `json:"price,omitempty"`
	HeaderImage    string  `json:"header_image,omitempty"`
}

type mostPlayedResp struct {
	Response struct {
		Ranks []struct {
			Rank             int   `json:"rank"`
			AppID            int64 `json:"appid"`
			ConcurrentInGame int64 `json:"concurrent_in_game"`
			PeakInGame       int64 `json:"peak_in_game"`
		} `json:"ranks"`
	} `json:"response"`
}

// MostPlayed returns the top entries of the live most-played chart. Each
// entry is enriched with storefront details under a bounded fan-out; an
// entry whose enrichment fails keeps its chart fields and is logged.
func (cat *Catalog) MostPlayed(ctx context.Context, limit int) ([]MostPlayedEntry, error) {
	u := cat.c.apiURL + "/ISteamChartsService/GetMostPlayedGames/v1/"

	var out mostPlayedResp
	err := netutil.DoWithRetry(ctx, func(ctx context.Context) error {
		return netutil.GetJSON(ctx, cat.c.http, u, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("steam: most played: %w", err)
	}

	ranks := out.Response.Ranks
	if limit <= 0 {
		limit = 10
	}
	if limit > len(ranks) {
		limit = len(ranks)
	}

	entries := make([]MostPlayedEntry, limit)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentFetches)
	for i := 0; i < limit; i++ {
		r := ranks[i]
		entries[i] = MostPlayedEntry{
			Rank:           r.Rank,
			AppID:          r.AppID,
			CurrentPlayers: r.ConcurrentInGame,
			PeakInGame:     r.PeakInGame,
		}
		idx := i
		eg.Go(func() error {
			details, err := cat.AppDetails(gctx, entries[idx].AppID)
			if err != nil {
				log.Printf("[steam] most played: enrich %d: %v", entries[idx].AppID, err)
				return nil
			}
			entries[idx].Name = details.Name
			entries[idx].IsFree = details.IsFree
			entries[idx].Price = details.Price
			entries[idx].HeaderImage = details.HeaderImage
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ComingSoonEntry is one upcoming title from the storefront feature feed.
type ComingSoonEntry struct {
	AppID       int64   `json:"appid"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	DiscountPct int     `json:"discount_pct"`
	Currency    string  `json:"currency,omitempty"`
	HeaderImage string  `json:"header_image,omitempty"`
}

type featuredCategoriesResp struct {
	ComingSoon struct {
		Items []struct {
			ID              int64  `json:"id"`
			Name            string `json:"name"`
			FinalPrice      int64  `json:"final_price"`
			DiscountPercent int    `json:"discount_percent"`
			Currency        string `json:"currency"`
			LargeCapsule    string `json:"large_capsule_image"`
		} `json:"items"`
	} `json:"coming_soon"`
}

// ComingSoon returns the storefront's upcoming-releases feature list.
func (cat *Catalog) ComingSoon(ctx context.Context) ([]ComingSoonEntry, error) {
	q := url.Values{}
	q.Set("cc", cat.c.country)
	q.Set("l", cat.c.language)
	u := cat.c.storeURL + "/api/featuredcategories?" + q.Encode()

	var out featuredCategoriesResp
	err := netutil.DoWithRetry(ctx, func(ctx context.Context) error {
		return netutil.GetJSON(ctx, cat.c.http, u, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("steam: coming soon: %w", err)
	}

	entries := make([]ComingSoonEntry, 0, len(out.ComingSoon.Items))
	for _, it := range out.ComingSoon.Items {
		entries = append(entries, ComingSoonEntry{
			AppID:       it.ID,
			Name:        it.Name,
			Price:       float64(it.FinalPrice) / 100,
			DiscountPct: it.DiscountPercent,
			Currency:    it.Currency,
			HeaderImage: it.LargeCapsule,
		})
	}
	return entries, nil
}
