// Package config loads the sessionx CLI configuration.
//
// Sources, lowest to highest priority: built-in defaults, a YAML file,
// SESSIONX_ environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "SESSIONX_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads defaults, the file (if any), the environment and overrides, in
// that order, then unmarshals and validates the result.
//
// overrides holds flag values keyed by dotted config keys; empty values are
// skipped so unset flags do not mask lower sources.
func (l *Loader) Load(overrides map[string]any) (*Config, error) {
	if err := l.LoadMap(Defaults()); err != nil {
		return nil, err
	}

	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return nil, fmt.Errorf("config: load file: %w", err)
		}
	}

	if err := l.LoadEnv(); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	if len(overrides) > 0 {
		set := make(map[string]any, len(overrides))
		for key, value := range overrides {
			if s, ok := value.(string); ok && s == "" {
				continue
			}
			set[key] = value
		}
		if err := l.k.Load(flatProvider(set), nil); err != nil {
			return nil, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFile loads configuration from a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}

	return nil
}

// LoadEnv loads configuration from environment variables.
// A double underscore separates sections; a single underscore stays part of
// the key. Example: SESSIONX_STORE__REDIS__ADDR -> store.redis.addr,
// SESSIONX_BASE_URL -> base_url.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	return nil
}

// LoadMap loads nested configuration from a map.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("config: load map: %w", err)
	}
	return nil
}

// String returns a value from the loaded configuration.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("config: ReadBytes not supported by map provider, use Read() instead")

// mapProvider is a koanf provider serving an already nested map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// flatProvider is a koanf provider serving dotted keys, such as flag values.
type flatProvider map[string]any

func (m flatProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m flatProvider) Read() (map[string]any, error) {
	nested := make(map[string]any)
	for key, value := range m {
		parts := strings.Split(key, ".")
		cur := nested
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = value
	}
	return nested, nil
}
