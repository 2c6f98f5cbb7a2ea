// Package config loads runtime settings from the environment. An optional
// .env file in the working directory is read first, then typed values are
// parsed from env vars with defaults applied.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds runtime settings for the API server.
type Config struct {
	Port               string `env:"PORT" envDefault:"8080"`
	DatabaseURL        string `env:"DATABASE_URL"`
	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET"`
	AccessTokenExpiry  Expiry `env:"ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	RefreshTokenExpiry Expiry `env:"REFRESH_TOKEN_EXPIRY" envDefault:"7d"`
	CORSOrigins        string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`
	CookieSecure       bool   `env:"COOKIE_SECURE" envDefault:"true"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string `env:"LOG_FORMAT" envDefault:"json"`
	OTelEndpoint       string `env:"OTEL_ENDPOINT"`
	BcryptCost         int    `env:"BCRYPT_COST" envDefault:"10"`
}

// Expiry is a token lifetime. Besides Go duration syntax ("15m", "1h") it
// accepts a whole number of days ("7d").
type Expiry time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Expiry) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fmt.Errorf("invalid expiry %q: %w", s, err)
		}
		*e = Expiry(time.Duration(n) * 24 * time.Hour)
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid expiry %q: %w", s, err)
	}
	*e = Expiry(d)
	return nil
}

// Duration returns the expiry as a time.Duration.
func (e Expiry) Duration() time.Duration { return time.Duration(e) }

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that have no usable default. DatabaseURL is only
// required when the server runs against PostgreSQL, so callers check it.
func (c *Config) Validate() error {
	var errs []error
	if c.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is not set"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is not set"))
	}
	if c.AccessTokenExpiry.Duration() <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRY must be positive"))
	}
	if c.RefreshTokenExpiry.Duration() <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRY must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range [4, 31]", c.BcryptCost))
	}
	return errors.Join(errs...)
}

// Origins splits CORSOrigins into a trimmed list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
