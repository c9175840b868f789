// Package deals adapts the deals provider API. Calls are authorized with a
// client-credentials access token that is cached across requests and
// refreshed shortly before it expires.
package deals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/netutil"
)

const (
	defaultAPIURL = "https://api.isthereanydeal.com"

	// tokenSafetyMargin is subtracted from the token lifetime so a token is
	// never presented within this window of its upstream expiry.
	tokenSafetyMargin = 30 * time.Second
)

// Config holds the provider credentials and endpoint.
type Config struct {
	ClientID     string
	ClientSecret string
	APIURL       string

	// HTTP overrides the default client; used by tests.
	HTTP *http.Client
}

// Client talks to the deals provider.
type Client struct {
	clientID     string
	clientSecret string
	apiURL       string
	http         *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time

	group singleflight.Group
	now   func() time.Time
}

// New returns a deals client. Both credential halves are required.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("deals: client credentials required")
	}
	c := &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		http:         cfg.HTTP,
		now:          time.Now,
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.http == nil {
		c.http = netutil.NewClient(netutil.DefaultTimeout)
	}
	return c, nil
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken returns a cached token while it is fresh, otherwise refreshes.
// Concurrent refreshes collapse to a single upstream call.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("token", func() (any, error) {
		// The winner of a previous flight may have refreshed already.
		c.mu.Lock()
		if c.token != "" && c.now().Before(c.tokenExp) {
			tok := c.token
			c.mu.Unlock()
			return tok, nil
		}
		c.mu.Unlock()
		return c.refreshToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	var out tokenResp
	err := netutil.DoWithRetry(ctx, func(ctx context.Context) error {
		return netutil.PostFormJSON(ctx, c.http, c.apiURL+"/oauth/token", form, &out)
	})
	if err != nil {
		return "", fmt.Errorf("deals: fetch token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("deals: token response missing access_token")
	}

	lifetime := time.Duration(out.ExpiresIn) * time.Second
	margin := tokenSafetyMargin
	if lifetime <= margin {
		margin = lifetime / 2
	}

	c.mu.Lock()
	c.token = out.AccessToken
	c.tokenExp = c.now().Add(lifetime - margin)
	c.mu.Unlock()
	return out.AccessToken, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	u := c.apiURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return netutil.DoWithRetry(ctx, func(ctx context.Context) error {
		return netutil.GetJSONBearer(ctx, c.http, u, tok, out)
	})
}

type dealRow struct {
	AppID    int64   `json:"appid"`
	Title    string  `json:"title"`
	PriceNew float64 `json:"price_new"`
	PriceOld float64 `json:"price_old"`
	Cut      int     `json:"cut"`
	Currency string  `json:"currency"`
	URL      string  `json:"url"`
	Shop     struct {
		Name string `json:"name"`
	} `json:"shop"`
}

func (r dealRow) toModel() model.DealInfo {
	return model.DealInfo{
		AppID:       r.AppID,
		Title:       r.Title,
		Shop:        r.Shop.Name,
		PriceNew:    r.PriceNew,
		PriceOld:    r.PriceOld,
		DiscountPct: r.Cut,
		Currency:    r.Currency,
		URL:         r.URL,
	}
}

type dealsListResp struct {
	Deals []dealRow `json:"deals"`
}

// BestDeals returns the current best offers, filtered upstream by limit and
// minimum discount percentage.
func (c *Client) BestDeals(ctx context.Context, limit, minDiscountPct int) ([]model.DealInfo, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("min_discount", strconv.Itoa(minDiscountPct))

	var out dealsListResp
	if err := c.getJSON(ctx, "/deals/v2/best", q, &out); err != nil {
		return nil, fmt.Errorf("deals: best deals: %w", err)
	}
	deals := make([]model.DealInfo, 0, len(out.Deals))
	for _, d := range out.Deals {
		deals = append(deals, d.toModel())
	}
	return deals, nil
}

// GamePrices returns every store offer for a single title.
func (c *Client) GamePrices(ctx context.Context, appid int64) ([]model.DealInfo, error) {
	var out dealsListResp
	if err := c.getJSON(ctx, "/deals/v2/game/"+strconv.FormatInt(appid, 10), nil, &out); err != nil {
		return nil, fmt.Errorf("deals: game prices %d: %w", appid, err)
	}
	deals := make([]model.DealInfo, 0, len(out.Deals))
	for _, d := range out.Deals {
		deals = append(deals, d.toModel())
	}
	return deals, nil
}
