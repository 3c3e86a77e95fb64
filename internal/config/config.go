package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// accounts
	// "memory" or "postgres"
	AccountsBackend string `toml:"accounts_backend"`
	PostgresHost    string `toml:"postgres_host"`
	PostgresPort    string `toml:"postgres_port"`
	PostgresDBName  string `toml:"postgres_db_name"`
	PasswordCost    int    `toml:"password_cost"`
	SeedDefaults    bool   `toml:"seed_defaults"`
	SeedFilePath    string `toml:"seed_file_path"`

	// sessions
	// "memory" or "redis"
	SessionsBackend     string   `toml:"sessions_backend"`
	SessionTTL          Duration `toml:"session_ttl"`
	SessionCacheEnabled bool     `toml:"session_cache_enabled"`
	SessionCacheSizeMB  int      `toml:"session_cache_size_mb"`
	SessionCookieSecure bool     `toml:"session_cookie_secure"`
	SignedCookies       bool     `toml:"signed_cookies"`
	RedisHost           string   `toml:"redis_host"`
	RedisPort           string   `toml:"redis_port"`

	LoginRateLimitAllowedPerMin int `toml:"login_rate_limit_allowed_per_min"`
}

// Duration lets TOML carry values like "168h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing", env)
	}
	return cfg, nil
}

// Load reads the TOML file and returns the config for the given environment.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.AccountsBackend == "" {
		c.AccountsBackend = "memory"
	}
	if c.SessionsBackend == "" {
		c.SessionsBackend = "memory"
	}
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = 7 * 24 * time.Hour
	}
	if c.SessionCacheSizeMB == 0 {
		c.SessionCacheSizeMB = 10
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) Validate() error {
	switch c.AccountsBackend {
	case "memory":
	case "postgres":
		if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
			return errors.New("postgres accounts backend needs postgres_host, postgres_port and postgres_db_name")
		}
	default:
		return fmt.Errorf("unknown accounts backend: %s", c.AccountsBackend)
	}

	switch c.SessionsBackend {
	case "memory":
	case "redis":
		if c.RedisHost == "" || c.RedisPort == "" {
			return errors.New("redis sessions backend needs redis_host and redis_port")
		}
	default:
		return fmt.Errorf("unknown sessions backend: %s", c.SessionsBackend)
	}

	if c.SessionTTL.Duration < 0 {
		return errors.New("session ttl must not be negative")
	}

	return nil
}

// RedisEnabled tells whether a redis client has to be created
// (sessions backend, login rate limiting).
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != "" && c.RedisPort != ""
}
