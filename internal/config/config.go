// internal/config/config.go
//
// Process configuration, read once at startup.
// Responsibilities:
//   - Load an optional .env file (local development).
//   - Parse environment variables into Config with defaults.
//   - Reject values the server cannot run with.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the server.
type Config struct {
	Port         string `env:"PORT"          envDefault:"5175"`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	DBPath       string `env:"DB_PATH"       envDefault:"data/crossword.db"`
	JWTSecret    string `env:"JWT_SECRET"    envDefault:"dev_secret_change_me"`
	CookieName   string `env:"COOKIE_NAME"   envDefault:"crossword_token"`
	AppEnv       string `env:"APP_ENV"       envDefault:"development"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"10s"`
	CacheTTL       time.Duration `env:"CACHE_TTL"        envDefault:"10s"`
	AutoStartAfter time.Duration `env:"AUTO_START_AFTER" envDefault:"50s"`

	Retention         time.Duration `env:"PUZZLE_RETENTION"         envDefault:"168h"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL"           envDefault:"1h"`
	RetentionInterval time.Duration `env:"RETENTION_SWEEP_INTERVAL" envDefault:"24h"`
	SweepWorkers      int           `env:"SWEEP_WORKERS"            envDefault:"4"`
	// SweepTokenHash is a bcrypt hash of the bearer token accepted by
	// /internal/sweep. Empty disables the endpoint.
	SweepTokenHash string `env:"SWEEP_TOKEN_HASH"`
}

// Production reports whether cookies must be Secure/SameSite=None.
func (c Config) Production() bool { return c.AppEnv == "production" }

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.AutoStartAfter <= 0 {
		errs = append(errs, errors.New("AUTO_START_AFTER must be positive"))
	}
	if c.Retention <= 0 {
		errs = append(errs, errors.New("PUZZLE_RETENTION must be positive"))
	}
	if c.CacheTTL < 0 || c.SweepInterval < 0 || c.RetentionInterval < 0 {
		errs = append(errs, errors.New("CACHE_TTL, SWEEP_INTERVAL and RETENTION_SWEEP_INTERVAL must not be negative"))
	}
	return errors.Join(errs...)
}
