// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first if present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	StoreBackend           string `env:"STORE_BACKEND" envDefault:"firestore"`
	FirebaseServiceAccount string `env:"FIREBASE_SERVICE_ACCOUNT"`
	FirebaseProjectID      string `env:"FIREBASE_PROJECT_ID"`
	SQLitePath             string `env:"SQLITE_PATH" envDefault:"data/stampcard.db"`

	FormSGWebhookSecret string `env:"FORMSG_WEBHOOK_SECRET"`
	FormSGSecretKey     string `env:"FORMSG_SECRET_KEY"`

	// BaseURL prefixes redirect URLs handed to webhook registrants.
	BaseURL string `env:"DOMAIN" envDefault:"http://localhost:8080"`

	// DevMode appends storage error causes to API error messages.
	DevMode bool `env:"DEV_MODE" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	// Limits are per client IP. Venue Wi-Fi puts many attendees behind one
	// NAT address, so the defaults are sized for a hall, not a person.
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"120"`
}

// Load reads envFile (ignored when missing) and then the process environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendFirestore, BackendSQLite:
	default:
		return fmt.Errorf("config: STORE_BACKEND must be %q or %q, got %q", BackendFirestore, BackendSQLite, c.StoreBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.RateLimitPerMinute < 0 || c.RateLimitBurst < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	if c.RateLimitPerMinute > 0 && c.RateLimitBurst == 0 {
		return errors.New("config: RATE_LIMIT_BURST must be positive when RATE_LIMIT_PER_MINUTE is set")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
