// Package config loads service configuration from config.toml and
// RECURLY_GW_ environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "RECURLY_GW"

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Recurly     RecurlyConfig     `mapstructure:"recurly"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds Postgres connection settings. Lifetimes are minutes.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IdempotencyConfig selects where payment return claims are kept.
type IdempotencyConfig struct {
	Backend   string        `mapstructure:"backend"` // memory or redis
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// JWTConfig holds settings for the admin API bearer tokens.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`

	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// RecurlyConfig holds Recurly API settings shared by every gateway.
// CallTimeout bounds each remote call, not the whole return.
type RecurlyConfig struct {
	BaseURL                 string        `mapstructure:"base_url"`
	APIVersion              string        `mapstructure:"api_version"`
	CallTimeout             time.Duration `mapstructure:"call_timeout"`
	BreakerMaxFailures      uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout      time.Duration `mapstructure:"breaker_open_timeout"`
	BreakerHalfOpenRequests uint32        `mapstructure:"breaker_half_open_requests"`

	SharedSubdomain  string `mapstructure:"shared_subdomain"`
	SharedPrivateKey string `mapstructure:"shared_private_key"`
	SharedPublicKey  string `mapstructure:"shared_public_key"`
}

// HasSharedCredentials reports whether any shared Recurly credential is set.
func (r RecurlyConfig) HasSharedCredentials() bool {
	return r.SharedSubdomain != "" || r.SharedPrivateKey != "" || r.SharedPublicKey != ""
}

// SecretsConfig holds the key that encrypts gateway private keys at rest.
// EncryptionKey is base64 of 32 bytes; empty stores keys in plaintext.
type SecretsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// Key decodes the encryption key. It returns nil when no key is configured.
func (s SecretsConfig) Key() (*[32]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("secrets.encryption_key must be base64: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secrets.encryption_key must decode to 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	Insecure          bool          `mapstructure:"insecure"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTracingEnabled  bool          `mapstructure:"db_tracing_enabled"`
}

// defaults registers every key so environment overrides reach Unmarshal.
var defaults = map[string]any{
	"app.name": "commerce-recurly",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "commerce_recurly",
	"database.sslmode":            "disable",
	"database.max_open_conns":     10,
	"database.max_idle_conns":     2,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"idempotency.backend":    "memory",
	"idempotency.ttl":        "24h",
	"idempotency.key_prefix": "",

	"jwt.secret": "",
	"jwt.issuer": "commerce-recurly",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout": "15s",
	// A return makes several sequential Recurly calls.
	"http.write_timeout":       "2m",
	"http.idle_timeout":        "60s",
	"http.shutdown_timeout":    "30s",
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       1 << 20,
	"http.cors_allow_origins":  []string{},
	"http.cors_allow_methods":  []string{"GET", "POST", "PUT", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "Authorization", "X-Request-ID"},
	"http.trusted_proxies":     []string{},
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 60,
	"http.rate_limit_window":   "1m",

	"recurly.base_url":                   "https://v3.recurly.com",
	"recurly.api_version":                "v2021-02-25",
	"recurly.call_timeout":               "30s",
	"recurly.breaker_max_failures":       5,
	"recurly.breaker_open_timeout":       "30s",
	"recurly.breaker_half_open_requests": 1,
	"recurly.shared_subdomain":           "",
	"recurly.shared_private_key":         "",
	"recurly.shared_public_key":          "",

	"secrets.encryption_key": "",

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.insecure":           false,
	"telemetry.sampling_ratio":     1.0,
	"telemetry.service_name":       "commerce-recurly",
	"telemetry.metrics_enabled":    false,
	"telemetry.metrics_interval":   "60s",
	"telemetry.logs_enabled":       false,
	"telemetry.db_tracing_enabled": false,
}

// Load reads configuration. Environment variables (RECURLY_GW_DATABASE_PASSWORD
// for database.password) win over config.toml, which wins over defaults.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	check := func(failed bool, format string, args ...any) {
		if failed {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Database.MaxOpenConns <= 0, "database.max_open_conns must be positive")
	check(c.Database.MaxIdleConns < 0, "database.max_idle_conns cannot be negative")
	check(c.Database.MaxIdleConns > c.Database.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
		c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	check(c.Idempotency.Backend != "memory" && c.Idempotency.Backend != "redis",
		"idempotency.backend must be 'memory' or 'redis', got %q", c.Idempotency.Backend)
	check(c.Recurly.CallTimeout <= 0, "recurly.call_timeout must be positive")
	check(c.HTTP.RateLimitEnabled && c.HTTP.RateLimitRequests <= 0,
		"http.rate_limit_requests must be positive when rate limiting is enabled")
	check(c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	if _, err := c.Secrets.Key(); err != nil {
		errs = append(errs, err)
	}

	if c.App.Env == "production" {
		check(len(c.JWT.Secret) < 32, "jwt.secret must be at least 32 characters in production")
		check(c.Database.Password == "", "database.password is required in production")
		check(c.Database.SSLMode == "disable", "database.sslmode cannot be 'disable' in production")
		check(c.Secrets.EncryptionKey == "", "secrets.encryption_key is required in production")
		check(slices.Contains(c.HTTP.CORSAllowOrigins, "*"),
			"http.cors_allow_origins cannot be '*' in production")
	}

	return errors.Join(errs...)
}

// DSN returns the Postgres URL with user and password escaped.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
