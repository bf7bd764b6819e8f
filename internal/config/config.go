package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSecret is only accepted outside production.
const DefaultSecret = "change-me"

// Config holds the listen party backend configuration.
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	AppHost  string `mapstructure:"app_host"`
	HTTPPort string `mapstructure:"app_port"`
	LogLevel string `mapstructure:"log_level"`

	SecretKey  string        `mapstructure:"secret_key"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// Storage: "memory" or "postgres"
	StoreBackend string `mapstructure:"store_backend"`
	DatabaseURL  string `mapstructure:"database_url"`

	// Presence cache: "memory" or "valkey"
	CacheBackend   string `mapstructure:"cache_backend"`
	ValkeyAddr     string `mapstructure:"valkey_addr"`
	CacheKeyPrefix string `mapstructure:"cache_key_prefix"`

	CORSAllowOrigin string `mapstructure:"cors_allow_origin"`
	MaxPageSize     int    `mapstructure:"max_page_size"`

	SpotifyClientID     string `mapstructure:"spotify_client_id"`
	SpotifyClientSecret string `mapstructure:"spotify_client_secret"`
	SpotifyAPIBase      string `mapstructure:"spotify_api_base"`
	SpotifyTokenURL     string `mapstructure:"spotify_token_url"`
	SpotifyAuthURL      string `mapstructure:"spotify_auth_url"`
	SpotifyRedirectURL  string `mapstructure:"spotify_redirect_url"`
	SpotifyScopes       string `mapstructure:"spotify_scopes"` // space separated

	// Where the browser lands after login and logout
	FrontendURL string `mapstructure:"frontend_url"`

	// WebSocket
	WSReadBufferSize  int           `mapstructure:"ws_read_buffer_size"`
	WSWriteBufferSize int           `mapstructure:"ws_write_buffer_size"`
	WSMaxMessageSize  int64         `mapstructure:"ws_max_message_size"`
	EvictTimeout      time.Duration `mapstructure:"evict_timeout"`
}

var defaults = map[string]any{
	"app_env":               "development",
	"app_host":              "0.0.0.0",
	"app_port":              "5000",
	"log_level":             "info",
	"secret_key":            DefaultSecret,
	"session_ttl":           "720h",
	"store_backend":         "memory",
	"database_url":          "",
	"cache_backend":         "memory",
	"valkey_addr":           "127.0.0.1:6379",
	"cache_key_prefix":      "listenParty_",
	"cors_allow_origin":     "http://127.0.0.1:5173",
	"max_page_size":         50,
	"spotify_client_id":     "",
	"spotify_client_secret": "",
	"spotify_api_base":      "https://api.spotify.com/v1",
	"spotify_token_url":     "https://accounts.spotify.com/api/token",
	"spotify_auth_url":      "https://accounts.spotify.com/authorize",
	"spotify_redirect_url":  "http://127.0.0.1:5000/api/auth",
	"spotify_scopes":        "user-read-email user-read-private streaming user-read-playback-state user-modify-playback-state",
	"frontend_url":          "http://127.0.0.1:5173/",
	"ws_read_buffer_size":   1024,
	"ws_write_buffer_size":  1024,
	"ws_max_message_size":   65536,
	"evict_timeout":         "5s",
}

// Load reads .env if present, then the environment. Every key is the upper
// case form of its mapstructure name, e.g. APP_PORT.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: .env not found, using environment variables only.")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, def := range defaults {
		v.SetDefault(key, def)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.CacheBackend {
	case "memory":
	case "valkey":
		if c.ValkeyAddr == "" {
			return errors.New("config: VALKEY_ADDR is required for the valkey cache")
		}
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.MaxPageSize <= 0 {
		return errors.New("config: MAX_PAGE_SIZE must be positive")
	}
	if c.EvictTimeout <= 0 {
		return errors.New("config: EVICT_TIMEOUT must be positive")
	}
	if c.SecretKey == "" {
		return errors.New("config: SECRET_KEY is required")
	}
	if c.IsProduction() {
		if c.SecretKey == DefaultSecret {
			return errors.New("config: in production SECRET_KEY must be changed")
		}
		if c.StoreBackend == "memory" {
			return errors.New("config: in production STORE_BACKEND must be postgres")
		}
	}
	return nil
}

// Scopes returns the provider scopes requested at login.
func (c *Config) Scopes() []string {
	return strings.Fields(c.SpotifyScopes)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Addr returns listen address for HTTP server.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}
