package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config is the CLI configuration.
type Config struct {
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	RefreshPath string        `koanf:"refresh_path"`
	LoginPath   string        `koanf:"login_path"`

	Credentials CredentialsConfig `koanf:"credentials"`
	Store       StoreConfig       `koanf:"store"`
	Log         LogConfig         `koanf:"log"`
}

// CredentialsConfig selects how the client authenticates.
type CredentialsConfig struct {
	// Bearer sends the stored access token as Authorization header.
	Bearer bool `koanf:"bearer"`
	// Cookies keeps server-set cookies, such as a refresh cookie, in a jar.
	Cookies bool `koanf:"cookies"`
}

// StoreConfig selects where the access credential is kept between runs.
type StoreConfig struct {
	Driver string       `koanf:"driver"`
	Key    string       `koanf:"key"`
	Redis  RedisConfig  `koanf:"redis"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

// RedisConfig configures the Redis credential store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SQLiteConfig configures the SQLite credential store.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Defaults returns the built-in configuration as a nested map.
func Defaults() map[string]any {
	return map[string]any{
		"timeout":      "30s",
		"refresh_path": "/auth/refresh",
		"login_path":   "/login",
		"credentials": map[string]any{
			"bearer":  true,
			"cookies": false,
		},
		"store": map[string]any{
			"driver": DriverMemory,
			"key":    "sessionx:credential",
			"sqlite": map[string]any{
				"path": "sessionx.db",
			},
		},
		"log": map[string]any{
			"level": "warn",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}

	if c.RefreshPath == "" {
		return errors.New("config: refresh_path is required")
	}

	if !c.Credentials.Bearer && !c.Credentials.Cookies {
		return errors.New("config: at least one of credentials.bearer and credentials.cookies must be enabled")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("config: store.redis.addr is required for the redis driver")
		}
	case DriverSQLite:
		if c.Store.SQLite.Path == "" {
			return errors.New("config: store.sqlite.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q (want memory, redis or sqlite)", c.Store.Driver)
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}

	return nil
}
