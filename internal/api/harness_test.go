package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steampulse/steampulse/internal/auth"
	"github.com/steampulse/steampulse/internal/model"
	"github.com/steampulse/steampulse/internal/steam"
	"github.com/steampulse/steampulse/internal/store"
)

const (
	testClientID  = "desktop-main"
	testSecret    = "desktop-main-secret"
	altClientID   = "desktop-alt"
	altSecret     = "desktop-alt-secret"
	sessionSecret = "api-test-session-secret"
)

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

var nonceCounter atomic.Int64

// freshNonce yields a unique 16-byte hex nonce per call.
func freshNonce() string {
	return fmt.Sprintf("%032x", nonceCounter.Add(1))
}

// --- fakes ---

type fakeStore struct {
	mu      sync.Mutex
	entries map[int64]model.WatchlistEntry
	samples map[int64][]model.PlayerSample
	hourly  map[int64][]model.HourlyAggregate
	daily   map[int64][]model.DailyAggregate
	games   map[int64]model.GameDetails
	tags    map[int64]model.GameTags

	lastHistoryLimit int
	pingErr          error
	failWith         error // when set, every operation returns it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(map[int64]model.WatchlistEntry),
		samples: make(map[int64][]model.PlayerSample),
		hourly:  make(map[int64][]model.HourlyAggregate),
		daily:   make(map[int64][]model.DailyAggregate),
		games:   make(map[int64]model.GameDetails),
		tags:    make(map[int64]model.GameTags),
	}
}

func (f *fakeStore) Watchlist(context.Context) ([]model.WatchlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	entries := make([]model.WatchlistEntry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastCount != entries[j].LastCount {
			return entries[i].LastCount > entries[j].LastCount
		}
		return entries[i].AppID < entries[j].AppID
	})
	return entries, nil
}

func (f *fakeStore) WatchlistEntry(_ context.Context, appid int64) (model.WatchlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return model.WatchlistEntry{}, f.failWith
	}
	e, ok := f.entries[appid]
	if !ok {
		return model.WatchlistEntry{}, store.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) UpsertWatchlist(_ context.Context, appid int64, name string, lastCount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.entries[appid] = model.WatchlistEntry{AppID: appid, Name: name, LastCount: lastCount, UpdatedAt: time.Now().UTC()}
	return nil
}

func (f *fakeStore) RemoveFromWatchlist(_ context.Context, appid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.entries, appid)
	delete(f.samples, appid)
	return nil
}

func (f *fakeStore) PlayerCountHistory(_ context.Context, appid int64, limit int) ([]model.PlayerSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.lastHistoryLimit = limit
	return f.samples[appid], nil
}

func (f *fakeStore) HourlyAggregates(_ context.Context, appid int64, _ time.Time) ([]model.HourlyAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.hourly[appid], nil
}

func (f *fakeStore) DailyAggregates(_ context.Context, appid int64, _ time.Time) ([]model.DailyAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.daily[appid], nil
}

func (f *fakeStore) Game(_ context.Context, appid int64) (model.GameDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return model.GameDetails{}, f.failWith
	}
	g, ok := f.games[appid]
	if !ok {
		return model.GameDetails{}, store.ErrNotFound
	}
	return g, nil
}

func (f *fakeStore) AllGames(context.Context) ([]model.GameDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	games := make([]model.GameDetails, 0, len(f.games))
	for _, g := range f.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	return games, nil
}

func (f *fakeStore) GamesByGenre(_ context.Context, genre string) ([]model.GameDetails, error) {
	return f.gamesByTag(genre, func(t model.GameTags) []string { return t.Genres })
}

func (f *fakeStore) GamesByCategory(_ context.Context, category string) ([]model.GameDetails, error) {
	return f.gamesByTag(category, func(t model.GameTags) []string { return t.Categories })
}

func (f *fakeStore) gamesByTag(value string, pick func(model.GameTags) []string) ([]model.GameDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var games []model.GameDetails
	for appid, tags := range f.tags {
		for _, v := range pick(tags) {
			if v == value {
				if g, ok := f.games[appid]; ok {
					games = append(games, g)
				}
				break
			}
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	return games, nil
}

func (f *fakeStore) GameTags(_ context.Context, appids []int64) (map[int64]model.GameTags, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make(map[int64]model.GameTags)
	for _, id := range appids {
		if t, ok := f.tags[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertGame(_ context.Context, g model.GameDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.games[g.AppID] = g
	return nil
}

func (f *fakeStore) AddGameGenres(_ context.Context, appid int64, genres []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tags[appid]
	t.Genres = append(t.Genres, genres...)
	f.tags[appid] = t
	return nil
}

func (f *fakeStore) AddGameCategories(_ context.Context, appid int64, categories []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tags[appid]
	t.Categories = append(t.Categories, categories...)
	f.tags[appid] = t
	return nil
}

func (f *fakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

type fakePlayers struct {
	counts map[int64]int64
	err    error
}

func (f *fakePlayers) CurrentPlayers(_ context.Context, appid int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, ok := f.counts[appid]
	if !ok {
		return 0, steam.ErrNotFound
	}
	return n, nil
}

type fakeCatalog struct {
	details    map[int64]model.GameDetails
	mostPlayed []steam.MostPlayedEntry
	comingSoon []steam.ComingSoonEntry
	err        error

	mostPlayedLimit int
}

func (f *fakeCatalog) AppDetails(_ context.Context, appid int64) (model.GameDetails, error) {
	if f.err != nil {
		return model.GameDetails{}, f.err
	}
	g, ok := f.details[appid]
	if !ok {
		return model.GameDetails{}, steam.ErrNotFound
	}
	return g, nil
}

func (f *fakeCatalog) MostPlayed(_ context.Context, limit int) ([]steam.MostPlayedEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mostPlayedLimit = limit
	if limit > len(f.mostPlayed) {
		limit = len(f.mostPlayed)
	}
	return f.mostPlayed[:limit], nil
}

func (f *fakeCatalog) ComingSoon(context.Context) ([]steam.ComingSoonEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.comingSoon, nil
}

type fakeUsers struct {
	summaries map[string]model.PlayerSummary
	owned     map[string][]model.OwnedGame
	recent    map[string][]model.OwnedGame
	badges    map[string]model.BadgeSet
	vanity    map[string]string
	err       error
}

func (f *fakeUsers) PlayerSummary(_ context.Context, steamID string) (model.PlayerSummary, error) {
	if f.err != nil {
		return model.PlayerSummary{}, f.err
	}
	s, ok := f.summaries[steamID]
	if !ok {
		return model.PlayerSummary{}, steam.ErrNotFound
	}
	return s, nil
}

func (f *fakeUsers) OwnedGames(_ context.Context, steamID string) ([]model.OwnedGame, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.owned[steamID], nil
}

func (f *fakeUsers) RecentlyPlayed(_ context.Context, steamID string) ([]model.OwnedGame, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recent[steamID], nil
}

func (f *fakeUsers) Badges(_ context.Context, steamID string) (model.BadgeSet, error) {
	if f.err != nil {
		return model.BadgeSet{}, f.err
	}
	return f.badges[steamID], nil
}

func (f *fakeUsers) ResolveVanity(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.vanity[name], nil
}

type fakeDeals struct {
	best  []model.DealInfo
	byApp map[int64][]model.DealInfo
	err   error

	lastLimit       int
	lastMinDiscount int
}

func (f *fakeDeals) BestDeals(_ context.Context, limit, minDiscountPct int) ([]model.DealInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastLimit = limit
	f.lastMinDiscount = minDiscountPct
	return f.best, nil
}

func (f *fakeDeals) GamePrices(_ context.Context, appid int64) ([]model.DealInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byApp[appid], nil
}

type fakeScheduler struct {
	running bool
}

func (f *fakeScheduler) Running() bool { return f.running }

// --- harness ---

type harness struct {
	handler  http.Handler
	store    *fakeStore
	players  *fakePlayers
	catalog  *fakeCatalog
	users    *fakeUsers
	deals    *fakeDeals
	sessions *auth.Sessions
}

type harnessOption func(*Config, *Deps)

func withRateLimits(login, read, write int) harnessOption {
	return func(cfg *Config, _ *Deps) {
		cfg.LoginPerMinute = login
		cfg.ReadPerMinute = read
		cfg.WritePerMinute = write
	}
}

func withoutUsers() harnessOption {
	return func(_ *Config, deps *Deps) { deps.Users = nil }
}

func withoutDeals() harnessOption {
	return func(_ *Config, deps *Deps) { deps.Deals = nil }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	registry, err := auth.NewRegistry(map[string]string{
		testClientID: testSecret,
		altClientID:  altSecret,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ledger, err := auth.NewNonceLedger(10_000, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewNonceLedger: %v", err)
	}
	t.Cleanup(ledger.Close)
	sessions, err := auth.NewSessions(sessionSecret, 1200*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}

	h := &harness{
		store:    newFakeStore(),
		players:  &fakePlayers{counts: make(map[int64]int64)},
		catalog:  &fakeCatalog{details: make(map[int64]model.GameDetails)},
		users:    &fakeUsers{},
		deals:    &fakeDeals{},
		sessions: sessions,
	}

	cfg := Config{
		ListenAddr:     ":0",
		MaxBodyBytes:   1 << 20,
		Version:        "test",
		LoginPerMinute: 1000,
		ReadPerMinute:  1000,
		WritePerMinute: 1000,
	}
	deps := Deps{
		Store:     h.store,
		Players:   h.players,
		Catalog:   h.catalog,
		Users:     h.users,
		Deals:     h.deals,
		Sessions:  sessions,
		Verifier:  auth.NewVerifier(registry, ledger),
		Scheduler: &fakeScheduler{running: true},
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	h.handler = NewServer(cfg, deps).Handler()
	return h
}

// sign stamps the signed-request headers onto req for the given client. The
// canonical path excludes the query string.
func (h *harness) sign(req *http.Request, clientID, secret string, body []byte, ts int64, nonce string) {
	tsStr := strconv.FormatInt(ts, 10)
	req.Header.Set(auth.HeaderClientID, clientID)
	req.Header.Set(auth.HeaderTimestamp, tsStr)
	req.Header.Set(auth.HeaderNonce, nonce)
	req.Header.Set(auth.HeaderSignature, auth.Sign(secret, req.Method, req.URL.Path, body, tsStr, nonce))
}

// signedRequest builds a request signed by the default test client.
func (h *harness) signedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	h.sign(req, testClientID, testSecret, body, time.Now().Unix(), freshNonce())
	return req
}

// do runs a request through the full route chain.
func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// login performs the signed login exchange and returns the bearer token.
func (h *harness) login(t *testing.T) string {
	t.Helper()
	body := []byte(`{"client_id":"` + testClientID + `"}`)
	rec := h.do(h.signedRequest(http.MethodPost, "/auth/login", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("login returned an empty access token")
	}
	return resp.AccessToken
}

// authedRequest builds a request carrying both a fresh signature and the
// given bearer token.
func (h *harness) authedRequest(method, target, token string, body []byte) *http.Request {
	req := h.signedRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeJSONMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func errorDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response %q: %v", rec.Body.String(), err)
	}
	return resp.Detail
}
