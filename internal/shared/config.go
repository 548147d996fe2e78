package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file
// and overridden by PLAYVOTE_* environment variables.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Spotify     SpotifyAPIConfig  `toml:"spotify"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Requests    RequestsConfig    `toml:"requests"`
	Redis       RedisConfig       `toml:"redis"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"PLAYVOTE_SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"PLAYVOTE_SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"PLAYVOTE_SPOTIFY_REDIRECT_URI"`
}

// SpotifyAPIConfig controls the Spotify Web API transport.
type SpotifyAPIConfig struct {
	BaseURL    string        `toml:"base_url" env:"PLAYVOTE_SPOTIFY_BASE_URL"`
	AuthURL    string        `toml:"auth_url" env:"PLAYVOTE_SPOTIFY_AUTH_URL"`
	TokenURL   string        `toml:"token_url" env:"PLAYVOTE_SPOTIFY_TOKEN_URL"`
	Timeout    time.Duration `toml:"timeout" env:"PLAYVOTE_SPOTIFY_TIMEOUT"`
	MaxRetries int           `toml:"max_retries" env:"PLAYVOTE_SPOTIFY_MAX_RETRIES"`
	RateLimit  float64       `toml:"rate_limit" env:"PLAYVOTE_SPOTIFY_RATE_LIMIT"`
}

// DatabaseConfig contains database connection settings.
// Driver is "sqlite3" (DSN is a file path or ":memory:") or "pgx" (DSN is a Postgres URL).
type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"PLAYVOTE_DATABASE_DRIVER"`
	DSN          string `toml:"dsn" env:"PLAYVOTE_DATABASE_DSN"`
	MaxOpenConns int    `toml:"max_open_conns" env:"PLAYVOTE_DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"PLAYVOTE_DATABASE_MAX_IDLE_CONNS"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host" env:"PLAYVOTE_SERVER_HOST"`
	Port           int      `toml:"port" env:"PLAYVOTE_SERVER_PORT"`
	AllowedOrigins []string `toml:"allowed_origins" env:"PLAYVOTE_SERVER_ALLOWED_ORIGINS"`
	FrontendURL    string   `toml:"frontend_url" env:"PLAYVOTE_SERVER_FRONTEND_URL"`
}

// RequestsConfig contains song request lifecycle settings.
type RequestsConfig struct {
	GracePeriod       time.Duration `toml:"grace_period" env:"PLAYVOTE_REQUESTS_GRACE_PERIOD"`
	MaxAdministrators int           `toml:"max_administrators" env:"PLAYVOTE_REQUESTS_MAX_ADMINISTRATORS"`
	ReapInterval      time.Duration `toml:"reap_interval" env:"PLAYVOTE_REQUESTS_REAP_INTERVAL"`
}

// RedisConfig configures lifecycle event publishing. An empty URL disables it.
type RedisConfig struct {
	URL     string `toml:"url" env:"PLAYVOTE_REDIS_URL"`
	Channel string `toml:"channel" env:"PLAYVOTE_REDIS_CHANNEL"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"PLAYVOTE_LOG_LEVEL"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// layered over the embedded defaults, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config fields from PLAYVOTE_* environment variables.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports missing or out-of-range settings needed to serve.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database dsn is empty", ErrInvalidConfig)
	}
	if c.Requests.MaxAdministrators < 0 {
		return fmt.Errorf("%w: max_administrators must not be negative", ErrInvalidConfig)
	}
	if c.Requests.GracePeriod < 0 {
		return fmt.Errorf("%w: grace_period must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
