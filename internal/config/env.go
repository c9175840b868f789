// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Network
	ListenAddr string

	// Database
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	DBSchema      string
	DBPoolMinSize int
	DBPoolMaxSize int

	// Auth
	SessionSecret   string
	SessionTTL      time.Duration
	SessionLeeway   time.Duration
	Clients         map[string]string
	NonceTTL        time.Duration
	NonceMaxEntries int
	MaxBodyBytes    int64

	// Retention
	RetentionRawDays    int
	RetentionHourlyDays int
	RetentionDailyDays  int

	// Upstream providers
	SteamAPIKey       string
	SteamAPIURL       string
	SteamStoreURL     string
	SteamCountry      string
	SteamLanguage     string
	DealsClientID     string
	DealsClientSecret string
	DealsAPIURL       string

	// Scheduler
	SchedulerEnabled         bool
	WatchlistTopN            int
	SampleInterval           time.Duration
	WatchlistRefreshInterval time.Duration
	BackfillInterval         time.Duration
	RollupHourlyInterval     time.Duration
	RollupDailyInterval      time.Duration
	PruneInterval            time.Duration

	// Rate limits (requests per minute, per client)
	RateLimitLoginPerMin int
	RateLimitReadPerMin  int
	RateLimitWritePerMin int

	// Observability
	MetricsEnabled bool
}

// maxSessionLeeway bounds the clock-skew allowance for bearer verification.
const maxSessionLeeway = 120 * time.Second

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any required variable is missing or any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Network ---
	cfg.ListenAddr = strings.TrimSpace(envStr("LISTEN_ADDR", ":8000"))

	// --- Database ---
	cfg.DBHost = envStr("DB_HOST", "localhost")
	cfg.DBPort = envInt("DB_PORT", 5432, &errs)
	cfg.DBUser = envStr("DB_USER", "")
	cfg.DBPassword = envStr("DB_PASSWORD", "")
	cfg.DBName = envStr("DB_NAME", "")
	cfg.DBSchema = envStr("DB_SCHEMA", "custom-steam-dashboard")
	cfg.DBPoolMinSize = envInt("DB_POOL_MIN_SIZE", 10, &errs)
	cfg.DBPoolMaxSize = envInt("DB_POOL_MAX_SIZE", 20, &errs)

	// --- Auth ---
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	cfg.SessionTTL = time.Duration(envInt("SESSION_TTL_SECONDS", 1200, &errs)) * time.Second
	cfg.SessionLeeway = time.Duration(envInt("SESSION_LEEWAY_SECONDS", 60, &errs)) * time.Second
	cfg.Clients = loadClients(&errs)
	cfg.NonceTTL = time.Duration(envInt("NONCE_TTL_SECONDS", 300, &errs)) * time.Second
	cfg.NonceMaxEntries = envInt("NONCE_MAX_ENTRIES", 10000, &errs)
	cfg.MaxBodyBytes = envInt64("MAX_BODY_BYTES", 1<<20, &errs)

	// --- Retention ---
	cfg.RetentionRawDays = envInt("RETENTION_RAW_DAYS", 14, &errs)
	cfg.RetentionHourlyDays = envInt("RETENTION_HOURLY_DAYS", 30, &errs)
	cfg.RetentionDailyDays = envInt("RETENTION_DAILY_DAYS", 90, &errs)

	// --- Upstream providers ---
	cfg.SteamAPIKey = os.Getenv("STEAM_API_KEY")
	cfg.SteamAPIURL = envStr("STEAM_API_URL", "https://api.steampowered.com")
	cfg.SteamStoreURL = envStr("STEAM_STORE_URL", "https://store.steampowered.com")
	cfg.SteamCountry = envStr("STEAM_COUNTRY", "us")
	cfg.SteamLanguage = envStr("STEAM_LANGUAGE", "en")
	cfg.DealsClientID = os.Getenv("DEALS_CLIENT_ID")
	cfg.DealsClientSecret = os.Getenv("DEALS_CLIENT_SECRET")
	cfg.DealsAPIURL = envStr("DEALS_API_URL", "https://api.isthereanydeal.com")

	// --- Scheduler ---
	cfg.SchedulerEnabled = envBool("SCHEDULER_ENABLED", true, &errs)
	cfg.WatchlistTopN = envInt("WATCHLIST_TOP_N", 20, &errs)
	cfg.SampleInterval = envDuration("SAMPLE_INTERVAL", 5*time.Minute, &errs)
	cfg.WatchlistRefreshInterval = envDuration("WATCHLIST_REFRESH_INTERVAL", 60*time.Minute, &errs)
	cfg.BackfillInterval = envDuration("BACKFILL_INTERVAL", 65*time.Minute, &errs)
	cfg.RollupHourlyInterval = envDuration("ROLLUP_HOURLY_INTERVAL", 60*time.Minute, &errs)
	cfg.RollupDailyInterval = envDuration("ROLLUP_DAILY_INTERVAL", 24*time.Hour, &errs)
	cfg.PruneInterval = envDuration("PRUNE_INTERVAL", 24*time.Hour, &errs)

	// --- Rate limits ---
	cfg.RateLimitLoginPerMin = envInt("RATE_LIMIT_LOGIN_PER_MIN", 10, &errs)
	cfg.RateLimitReadPerMin = envInt("RATE_LIMIT_READ_PER_MIN", 60, &errs)
	cfg.RateLimitWritePerMin = envInt("RATE_LIMIT_WRITE_PER_MIN", 30, &errs)

	// --- Observability ---
	cfg.MetricsEnabled = envBool("METRICS_ENABLED", true, &errs)

	// --- Validation ---
	if cfg.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if cfg.DBUser == "" {
		errs = append(errs, "DB_USER is required")
	}
	if cfg.DBPassword == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}
	if cfg.DBName == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.DBSchema == "" {
		errs = append(errs, "DB_SCHEMA must not be empty")
	}
	validatePort("DB_PORT", cfg.DBPort, &errs)
	validatePositive("DB_POOL_MIN_SIZE", cfg.DBPoolMinSize, &errs)
	validatePositive("DB_POOL_MAX_SIZE", cfg.DBPoolMaxSize, &errs)
	if cfg.DBPoolMaxSize < cfg.DBPoolMinSize {
		errs = append(errs, "DB_POOL_MAX_SIZE must be greater than or equal to DB_POOL_MIN_SIZE")
	}

	if cfg.SessionSecret == "" {
		errs = append(errs, "SESSION_SECRET is required and must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		errs = append(errs, "SESSION_TTL_SECONDS must be positive")
	}
	if cfg.SessionLeeway < 0 || cfg.SessionLeeway > maxSessionLeeway {
		errs = append(errs, fmt.Sprintf("SESSION_LEEWAY_SECONDS must be 0-%d", int(maxSessionLeeway.Seconds())))
	}
	if cfg.NonceTTL < 2*time.Minute {
		errs = append(errs, "NONCE_TTL_SECONDS must be at least 120")
	}
	validatePositive("NONCE_MAX_ENTRIES", cfg.NonceMaxEntries, &errs)
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, "MAX_BODY_BYTES must be positive")
	}

	validatePositive("RETENTION_RAW_DAYS", cfg.RetentionRawDays, &errs)
	validatePositive("RETENTION_HOURLY_DAYS", cfg.RetentionHourlyDays, &errs)
	validatePositive("RETENTION_DAILY_DAYS", cfg.RetentionDailyDays, &errs)

	if (cfg.DealsClientID == "") != (cfg.DealsClientSecret == "") {
		errs = append(errs, "DEALS_CLIENT_ID and DEALS_CLIENT_SECRET must be set together")
	}

	if cfg.WatchlistTopN < 1 || cfg.WatchlistTopN > 100 {
		errs = append(errs, fmt.Sprintf("WATCHLIST_TOP_N must be 1-100, got %d", cfg.WatchlistTopN))
	}
	validatePositiveDuration("SAMPLE_INTERVAL", cfg.SampleInterval, &errs)
	validatePositiveDuration("WATCHLIST_REFRESH_INTERVAL", cfg.WatchlistRefreshInterval, &errs)
	validatePositiveDuration("BACKFILL_INTERVAL", cfg.BackfillInterval, &errs)
	validatePositiveDuration("ROLLUP_HOURLY_INTERVAL", cfg.RollupHourlyInterval, &errs)
	validatePositiveDuration("ROLLUP_DAILY_INTERVAL", cfg.RollupDailyInterval, &errs)
	validatePositiveDuration("PRUNE_INTERVAL", cfg.PruneInterval, &errs)

	validatePositive("RATE_LIMIT_LOGIN_PER_MIN", cfg.RateLimitLoginPerMin, &errs)
	validatePositive("RATE_LIMIT_READ_PER_MIN", cfg.RateLimitReadPerMin, &errs)
	validatePositive("RATE_LIMIT_WRITE_PER_MIN", cfg.RateLimitWritePerMin, &errs)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envInt64(key string, defaultVal int64, errs *[]string) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envBool(key string, defaultVal bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validatePositiveDuration(name string, value time.Duration, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be a positive duration, got %v", name, value))
	}
}
