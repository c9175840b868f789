// Package steam adapts the Steam Web API and storefront endpoints used by
// the sampling jobs and the API surface. All calls go through the shared
// retrying HTTP plumbing in internal/netutil.
package steam

import (
	"errors"
	"net/http"
	"strings"

	"github.com/steampulse/steampulse/internal/netutil"
)

const (
	defaultAPIURL   = "https://api.steampowered.com"
	defaultStoreURL = "https://store.steampowered.com"
	defaultCountry  = "us"
	defaultLanguage = "en"
)

// ErrNotFound is returned when Steam has no data for the requested subject.
var ErrNotFound = errors.New("steam: not found")

// Config holds the upstream endpoints and storefront localization.
type Config struct {
	APIKey   string
	APIURL   string
	StoreURL string
	Country  string
	Language string

	// HTTP overrides the default client; used by tests.
	HTTP *http.Client
}

// Client is the base adapter for keyless Steam Web API calls.
type Client struct {
	apiKey   string
	apiURL   string
	storeURL string
	country  string
	language string
	http     *http.Client
}

// New returns a client with defaults filled in for unset config fields.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:   cfg.APIKey,
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
		storeURL: strings.TrimRight(cfg.StoreURL, "/"),
		country:  cfg.Country,
		language: cfg.Language,
		http:     cfg.HTTP,
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.storeURL == "" {
		c.storeURL = defaultStoreURL
	}
	if c.country == "" {
		c.country = defaultCountry
	}
	if c.language == "" {
		c.language = defaultLanguage
	}
	if c.http == nil {
		c.http = netutil.NewClient(netutil.DefaultTimeout)
	}
	return c
}

// HasAPIKey reports whether key-gated endpoints (user provider) are usable.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}
