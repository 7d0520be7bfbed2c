package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sports-analytics/internal/api"
)

// Token store kinds accepted by TOKEN_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Defaults for configuration values.
const (
	DefaultRequestTimeout    = 10 * time.Second
	DefaultRefreshLead       = 60 * time.Second
	DefaultRequestsPerMinute = 600
	DefaultDBPath            = "./data/analytics.db"
	DefaultTokenStore        = StoreSQLite
	DefaultRedisPrefix       = "session"
	DefaultStorePoll         = 1 * time.Second
	DefaultHost              = "127.0.0.1"
	DefaultPort              = "8080"
	DefaultLogLevel          = "info"
	DefaultBankroll          = 1000.0
	DefaultKellyFraction     = 1.0
	DefaultMinArbProfitPct   = 1.0
	DefaultAlertCooldown     = 5 * time.Minute
	DefaultCORSOrigins       = "http://localhost:3000"
)

// Config holds all application configuration.
type Config struct {
	// Backend
	APIBaseURL        string
	RefreshPath       string
	LoginPath         string
	RequestTimeout    time.Duration
	RequestsPerMinute int

	// Session
	RefreshLead time.Duration
	TokenStore  string
	DBPath      string
	RedisAddr   string
	RedisPrefix string
	StorePoll   time.Duration
	RoutesFile  string

	// Server
	Host        string // Interface to listen on; 0.0.0.0 exposes every interface
	Port        string
	LogLevel    string
	CORSOrigins []string

	// Analytics defaults
	DefaultBankroll float64
	KellyFraction   float64
	MinArbProfitPct float64
	AlertCooldown   time.Duration
}

// Load reads configuration from environment variables (and .env file if present).
func Load() Config {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := Config{
		APIBaseURL:        api.DefaultBaseURL,
		RefreshPath:       api.DefaultRefreshPath,
		LoginPath:         api.DefaultLoginPath,
		RequestTimeout:    DefaultRequestTimeout,
		RequestsPerMinute: DefaultRequestsPerMinute,

		RefreshLead: DefaultRefreshLead,
		TokenStore:  DefaultTokenStore,
		DBPath:      DefaultDBPath,
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPrefix: DefaultRedisPrefix,
		StorePoll:   DefaultStorePoll,
		RoutesFile:  os.Getenv("ROUTES_FILE"),

		Host:        DefaultHost,
		Port:        DefaultPort,
		LogLevel:    DefaultLogLevel,
		CORSOrigins: splitList(DefaultCORSOrigins),

		DefaultBankroll: DefaultBankroll,
		KellyFraction:   DefaultKellyFraction,
		MinArbProfitPct: DefaultMinArbProfitPct,
		AlertCooldown:   DefaultAlertCooldown,
	}

	if v := os.Getenv("API_BASE_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("REFRESH_PATH"); v != "" {
		cfg.RefreshPath = v
	}
	if v := os.Getenv("LOGIN_PATH"); v != "" {
		cfg.LoginPath = v
	}
	if v, ok := envMillis("REQUEST_TIMEOUT_MS"); ok {
		cfg.RequestTimeout = v
	}
	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestsPerMinute = n
		}
	}

	if v, ok := envMillis("REFRESH_LEAD_MS"); ok {
		cfg.RefreshLead = v
	}
	if v := os.Getenv("TOKEN_STORE"); v != "" {
		cfg.TokenStore = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		cfg.RedisPrefix = v
	}
	if v, ok := envMillis("STORE_POLL_INTERVAL_MS"); ok {
		cfg.StorePoll = v
	}

	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = strings.TrimSpace(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	if v, ok := envFloat("DEFAULT_BANKROLL"); ok {
		cfg.DefaultBankroll = v
	}
	if v, ok := envFloat("KELLY_FRACTION"); ok {
		cfg.KellyFraction = v
	}
	if v, ok := envFloat("MIN_ARB_PROFIT_PCT"); ok {
		cfg.MinArbProfitPct = v
	}
	if v, ok := envMillis("ALERT_COOLDOWN_MS"); ok {
		cfg.AlertCooldown = v
	}

	return cfg
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envMillis(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that configuration values are within acceptable ranges.
func Validate(cfg Config) error {
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.RefreshLead < 0 {
		return fmt.Errorf("REFRESH_LEAD_MS must be non-negative, got %v", cfg.RefreshLead)
	}
	if cfg.RequestsPerMinute < 1 {
		return fmt.Errorf("REQUESTS_PER_MINUTE must be at least 1, got %d", cfg.RequestsPerMinute)
	}
	if cfg.KellyFraction <= 0 || cfg.KellyFraction > 1 {
		return fmt.Errorf("KELLY_FRACTION must be between 0 and 1, got %f", cfg.KellyFraction)
	}
	if cfg.DefaultBankroll <= 0 {
		return fmt.Errorf("DEFAULT_BANKROLL must be positive, got %f", cfg.DefaultBankroll)
	}
	if cfg.MinArbProfitPct < 0 {
		return fmt.Errorf("MIN_ARB_PROFIT_PCT must be non-negative, got %f", cfg.MinArbProfitPct)
	}
	switch cfg.TokenStore {
	case StoreSQLite, StoreMemory:
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when TOKEN_STORE=redis")
		}
	default:
		return fmt.Errorf("TOKEN_STORE must be one of sqlite, memory, redis, got %q", cfg.TokenStore)
	}
	if cfg.StorePoll < 10*time.Millisecond {
		return fmt.Errorf("STORE_POLL_INTERVAL_MS must be at least 10ms, got %v", cfg.StorePoll)
	}
	if cfg.Host != "localhost" && net.ParseIP(cfg.Host) == nil {
		return fmt.Errorf("HOST must be an IP address or localhost, got %q", cfg.Host)
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %q", cfg.Port)
	}
	return nil
}

// Addr is the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Backend returns the backend client settings.
func (c Config) Backend() api.BackendConfig {
	return api.BackendConfig{
		BaseURL:           c.APIBaseURL,
		RefreshPath:       c.RefreshPath,
		LoginPath:         c.LoginPath,
		Timeout:           c.RequestTimeout,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

// Summary returns a one-line description of the settings for startup logs.
func (c Config) Summary() string {
	store := c.TokenStore
	switch c.TokenStore {
	case StoreSQLite:
		store += ":" + c.DBPath
	case StoreRedis:
		store += ":" + c.RedisAddr
	}
	return fmt.Sprintf(" addr=%s api=%s store=%s lead=%v rpm=%d kelly=%.2f bankroll=%s",
		c.Addr(), c.APIBaseURL, store, c.RefreshLead, c.RequestsPerMinute, c.KellyFraction, FormatMoney(c.DefaultBankroll))
}

// FormatMoney returns a dollar amount rounded to cents.
func FormatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
