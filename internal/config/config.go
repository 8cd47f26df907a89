package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the application configuration parameters.
type Config struct {
	// DBConn is the DSN assembled by buildDSN; empty means no database.
	DBConn   string         `mapstructure:"-"`
	LogLevel string         `mapstructure:"log_level"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Clean    CleanConfig    `mapstructure:"clean"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	API      APIConfig      `mapstructure:"api"`
}

// ScrapeConfig tunes pagination and fetching.
type ScrapeConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TargetCount    int    `mapstructure:"target_count"`
	MaxPages       int    `mapstructure:"max_pages"`
	SaveEveryPages int    `mapstructure:"save_every_pages"`
	MaxEmptyPages  int    `mapstructure:"max_empty_pages"`
	// FetchMode is "http" or "headless".
	FetchMode        string      `mapstructure:"fetch_mode"`
	TimeoutSec       int         `mapstructure:"timeout_sec"`
	CloudflareBypass bool        `mapstructure:"cloudflare_bypass"`
	Retry            RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	WaitMs      int `mapstructure:"wait_ms"`
	MaxWaitMs   int `mapstructure:"max_wait_ms"`
}

type CleanConfig struct {
	DefaultYear int `mapstructure:"default_year"`
}

type PathsConfig struct {
	RawCorpus     string `mapstructure:"raw_corpus"`
	CleanedCorpus string `mapstructure:"cleaned_corpus"`
}

type AnalysisConfig struct {
	Term      string `mapstructure:"term"`
	PriorTerm string `mapstructure:"prior_term"`
}

type APIConfig struct {
	Port int `mapstructure:"port"`
}

// Timeout is the per-request fetch timeout.
func (s ScrapeConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// Global constants for configuration keys
const (
	DatabaseURLKey = "DATABASE_URL"
	DBHostKey      = "DB_HOST"
	DBPortKey      = "DB_PORT"
	DBUserKey      = "DB_USER"
	DBPasswordKey  = "DB_PASSWORD"
	DBNameKey      = "DB_NAME"
)

const (
	FetchModeHTTP     = "http"
	FetchModeHeadless = "headless"
)

var (
	ErrInvalidLimit     = errors.New("scrape limits must be positive")
	ErrInvalidFetchMode = errors.New("unknown fetch mode")
	ErrInvalidYear      = errors.New("default year out of range")
	ErrInvalidRetry     = errors.New("retry settings must be positive")
	ErrInvalidPath      = errors.New("corpus paths must be set")
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(DatabaseURLKey, "")
	v.SetDefault(DBPortKey, "5432")
	v.SetDefault("log_level", "info")

	v.SetDefault("scrape.base_url", "https://www.thegradcafe.com/survey/index.php")
	v.SetDefault("scrape.target_count", 50000)
	v.SetDefault("scrape.max_pages", 0)
	v.SetDefault("scrape.save_every_pages", 8)
	v.SetDefault("scrape.max_empty_pages", 10)
	v.SetDefault("scrape.fetch_mode", FetchModeHTTP)
	v.SetDefault("scrape.timeout_sec", 30)
	v.SetDefault("scrape.cloudflare_bypass", true)
	v.SetDefault("scrape.retry.max_attempts", 5)
	v.SetDefault("scrape.retry.wait_ms", 500)
	v.SetDefault("scrape.retry.max_wait_ms", 10000)

	v.SetDefault("clean.default_year", 2026)

	v.SetDefault("paths.raw_corpus", "raw_applicant_data.json")
	v.SetDefault("paths.cleaned_corpus", "applicant_data.json")

	v.SetDefault("analysis.term", "Spring 2026")
	v.SetDefault("analysis.prior_term", "Spring 2025")

	v.SetDefault("api.port", 8080)
}

// Load reads the configuration from v, which must already hold any file and
// environment sources. Defaults are registered first.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.DBConn = buildDSN(v)
	return &cfg, nil
}

// Init initializes the global Viper from ./config.yaml and APP_* environment
// variables, then watches the file. onChange, when set, receives the reloaded
// configuration after every edit.
func Init(onChange func(*Config)) (*Config, error) {
	v := viper.GetViper()

	// --- File-based configuration ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		fileFound = false
		slog.Info("config.yaml not found, using defaults and environment variables")
	}

	// APP_SCRAPE_MAX_PAGES overrides scrape.max_pages.
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DATABASE_URL is conventionally unprefixed.
	if err := v.BindEnv(DatabaseURLKey, "APP_"+DatabaseURLKey, DatabaseURLKey); err != nil {
		return nil, fmt.Errorf("bind %s: %w", DatabaseURLKey, err)
	}

	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			reloaded, err := Load(v)
			if err != nil {
				slog.Warn("ignoring config change", "file", e.Name, "err", err)
				return
			}
			slog.Info("config reloaded", "file", e.Name)
			if onChange != nil {
				onChange(reloaded)
			}
		})
		v.WatchConfig()
	}

	return cfg, nil
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	s := c.Scrape
	if s.TargetCount <= 0 || s.SaveEveryPages <= 0 || s.MaxEmptyPages <= 0 || s.MaxPages < 0 {
		return fmt.Errorf("%w: target=%d save_every=%d max_empty=%d max_pages=%d",
			ErrInvalidLimit, s.TargetCount, s.SaveEveryPages, s.MaxEmptyPages, s.MaxPages)
	}
	if s.FetchMode != FetchModeHTTP && s.FetchMode != FetchModeHeadless {
		return fmt.Errorf("%w: %q", ErrInvalidFetchMode, s.FetchMode)
	}
	if s.TimeoutSec <= 0 || s.Retry.MaxAttempts <= 0 || s.Retry.WaitMs < 0 || s.Retry.MaxWaitMs < s.Retry.WaitMs {
		return fmt.Errorf("%w: timeout=%ds attempts=%d wait=%dms max_wait=%dms",
			ErrInvalidRetry, s.TimeoutSec, s.Retry.MaxAttempts, s.Retry.WaitMs, s.Retry.MaxWaitMs)
	}
	if y := c.Clean.DefaultYear; y < 1900 || y > 2999 {
		return fmt.Errorf("%w: %d", ErrInvalidYear, y)
	}
	if c.Paths.RawCorpus == "" || c.Paths.CleanedCorpus == "" {
		return ErrInvalidPath
	}
	return nil
}

// buildDSN returns DATABASE_URL when set, else a PostgreSQL DSN assembled from
// the DB_* parts, else "" when the parts are incomplete.
func buildDSN(v *viper.Viper) string {
	if dsn := strings.TrimSpace(v.GetString(DatabaseURLKey)); dsn != "" {
		return dsn
	}

	host := v.GetString(DBHostKey)
	port := v.GetString(DBPortKey)
	user := v.GetString(DBUserKey)
	password := v.GetString(DBPasswordKey)
	dbname := v.GetString(DBNameKey)

	if host == "" || user == "" || dbname == "" {
		return ""
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + dbname,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
