package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/steampulse/steampulse/internal/auth"
	"github.com/steampulse/steampulse/internal/metrics"
	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/steam"
)

// Store is the persistence surface the handlers consume.
type Store interface {
	Watchlist(ctx context.Context) ([]model.WatchlistEntry, error)
	WatchlistEntry(ctx context.Context, appid int64) (model.WatchlistEntry, error)
	UpsertWatchlist(ctx context.Context, appid int64, name string, lastCount int64) error
	RemoveFromWatchlist(ctx context.Context, appid int64) error
	PlayerCountHistory(ctx context.Context, appid int64, limit int) ([]model.PlayerSample, error)
	HourlyAggregates(ctx context.Context, appid int64, since time.Time) ([]model.HourlyAggregate, error)
	DailyAggregates(ctx context.Context, appid int64, since time.Time) ([]model.DailyAggregate, error)
	Game(ctx context.Context, appid int64) (model.GameDetails, error)
	AllGames(ctx context.Context) ([]model.GameDetails, error)
	GamesByGenre(ctx context.Context, genre string) ([]model.GameDetails, error)
	GamesByCategory(ctx context.Context, category string) ([]model.GameDetails, error)
	GameTags(ctx context.Context, appids []int64) (map[int64]model.GameTags, error)
	UpsertGame(ctx context.Context, g model.GameDetails) error
	AddGameGenres(ctx context.Context, appid int64, genres []string) error
	AddGameCategories(ctx context.Context, appid int64, categories []string) error
	Ping(ctx context.Context) error
}

// Players samples live player counts.
type Players interface {
	CurrentPlayers(ctx context.Context, appid int64) (int64, error)
}

// Catalog serves storefront and chart lookups.
type Catalog interface {
	AppDetails(ctx context.Context, appid int64) (model.GameDetails, error)
	MostPlayed(ctx context.Context, limit int) ([]steam.MostPlayedEntry, error)
	ComingSoon(ctx context.Context) ([]steam.ComingSoonEntry, error)
}

// Users serves Steam user lookups. Nil when no API key is configured.
type Users interface {
	PlayerSummary(ctx context.Context, steamID string) (model.PlayerSummary, error)
	OwnedGames(ctx context.Context, steamID string) ([]model.OwnedGame, error)
	RecentlyPlayed(ctx context.Context, steamID string) ([]model.OwnedGame, error)
	Badges(ctx context.Context, steamID string) (model.BadgeSet, error)
	ResolveVanity(ctx context.Context, name string) (string, error)
}

// Deals serves store-deal lookups. Nil when no credentials are configured.
type Deals interface {
	BestDeals(ctx context.Context, limit, minDiscountPct int) ([]model.DealInfo, error)
	GamePrices(ctx context.Context, appid int64) ([]model.DealInfo, error)
}

// SchedulerStatus reports whether the job engine is running. Nil when the
// scheduler is disabled by configuration.
type SchedulerStatus interface {
	Running() bool
}

// Config carries the server's own settings; collaborators come in via Deps.
type Config struct {
	ListenAddr     string
	MaxBodyBytes   int64
	Version        string
	LoginPerMinute int
	ReadPerMinute  int
	WritePerMinute int
}

// Deps bundles the collaborators the routes are wired against. Users,
// Deals, Scheduler, and Metrics may be nil; the affected routes answer 503
// or drop their instrumentation accordingly.
type Deps struct {
	Store     Store
	Players   Players
	Catalog   Catalog
	Users     Users
	Deals     Deals
	Sessions  *auth.Sessions
	Verifier  *auth.Verifier
	Scheduler SchedulerStatus
	Metrics   *metrics.Set
}

// Server wraps the HTTP server and mux.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	gate       *gate
	limiter    *rateLimiter
	metrics    *metrics.Set
}

// NewServer wires all routes.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		mux: http.NewServeMux(),
		gate: &gate{
			verifier:     deps.Verifier,
			sessions:     deps.Sessions,
			maxBodyBytes: cfg.MaxBodyBytes,
			metrics:      deps.Metrics,
		},
		limiter: newRateLimiter(deps.Sessions, cfg.LoginPerMinute, cfg.ReadPerMinute, cfg.WritePerMinute),
		metrics: deps.Metrics,
	}

	// Public routes: no signature, no rate limit.
	s.public("GET /{$}", HandleRoot(cfg.Version))
	s.public("GET /health", HandleHealth(deps.Store, deps.Scheduler))
	if deps.Metrics != nil {
		s.mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	// Login: signed request only, no bearer yet.
	s.handle("POST /auth/login", limitLogin, HandleLogin(deps.Sessions))

	// Watchlist.
	s.handle("GET /api/watchlist", limitRead, HandleWatchlist(deps.Store))
	s.handle("POST /api/watchlist", limitWrite, HandleAddWatchlist(deps.Store, deps.Catalog))
	s.handle("DELETE /api/watchlist/{appid}", limitWrite, HandleRemoveWatchlist(deps.Store))

	// Games and history.
	s.handle("GET /api/games", limitRead, HandleGames(deps.Store))
	s.handle("GET /api/games/{appid}", limitRead, HandleGame(deps.Store, deps.Catalog))
	s.handle("GET /api/games/{appid}/current-players", limitRead, HandleCurrentPlayers(deps.Store, deps.Players))
	s.handle("GET /api/games/{appid}/history", limitRead, HandleHistory(deps.Store))
	s.handle("GET /api/games/{appid}/history/hourly", limitRead, HandleHourlyHistory(deps.Store))
	s.handle("GET /api/games/{appid}/history/daily", limitRead, HandleDailyHistory(deps.Store))
	s.handle("POST /api/games/tags/batch", limitRead, HandleGameTagsBatch(deps.Store))

	// Steam charts and users.
	s.handle("GET /api/steam/most-played", limitRead, HandleMostPlayed(deps.Catalog))
	s.handle("GET /api/steam/coming-soon", limitRead, HandleComingSoon(deps.Catalog))
	s.handle("GET /api/steam/player/{steamid}", limitRead, HandleSteamPlayer(deps.Users))
	s.handle("GET /api/steam/player/{steamid}/games", limitRead, HandleSteamPlayerGames(deps.Users))
	s.handle("GET /api/steam/player/{steamid}/recent", limitRead, HandleSteamPlayerRecent(deps.Users))
	s.handle("GET /api/steam/player/{steamid}/badges", limitRead, HandleSteamPlayerBadges(deps.Users))

	// Deals.
	s.handle("GET /api/deals/best", limitRead, HandleBestDeals(deps.Deals))
	s.handle("GET /api/deals/game/{appid}", limitRead, HandleGameDeals(deps.Deals))

	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.mux,
	}
	return s
}

// handle registers a gated route. The chain runs rate limit first (a
// throttled request must not burn a nonce), then the signed-request check,
// then the bearer check on /api/* routes.
func (s *Server) handle(pattern string, category limitCategory, h http.Handler) {
	route := routeTemplate(pattern)
	if strings.HasPrefix(route, "/api/") {
		h = s.gate.bearer(h)
	}
	h = s.gate.signed(h)
	h = s.limiter.middleware(category, h)
	s.mux.Handle(pattern, s.metrics.InstrumentHandler(route, h))
}

// public registers an ungated route.
func (s *Server) public(pattern string, h http.Handler) {
	s.mux.Handle(pattern, s.metrics.InstrumentHandler(routeTemplate(pattern), h))
}

// routeTemplate strips the method from a mux pattern, leaving the path
// template used as the metrics route label.
func routeTemplate(pattern string) string {
	if _, after, ok := strings.Cut(pattern, " "); ok {
		pattern = after
	}
	if pattern == "/{$}" {
		return "/"
	}
	return pattern
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
