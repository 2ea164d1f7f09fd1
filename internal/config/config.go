// Package config loads CLI configuration from a file and STRATA_ environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jacentio/strata/internal/logging"
)

// EnvPrefix prefixes environment overrides: STRATA_SQL_DSN sets sql.dsn.
const EnvPrefix = "STRATA_"

// Backend names.
const (
	BackendDynamo = "dynamodb"
	BackendSQL    = "sql"
	BackendText   = "textstore"
)

// ErrInvalidConfig is returned for configurations that cannot be used.
var ErrInvalidConfig = errors.New("strata: invalid config")

// Config is the CLI configuration.
type Config struct {
	Backend string         `mapstructure:"backend"`
	Log     logging.Config `mapstructure:"log"`
	SQL     SQL            `mapstructure:"sql"`
	Text    Text           `mapstructure:"text"`
	Dynamo  Dynamo         `mapstructure:"dynamo"`
}

// SQL configures the relational backend.
type SQL struct {
	// Driver is "sqlite" or "pgx".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Text configures the structured-text backend.
type Text struct {
	Dir    string `mapstructure:"dir"`
	Shards int    `mapstructure:"shards"`
}

// Dynamo configures the DynamoDB backend. Credentials come from the default
// AWS chain.
type Dynamo struct {
	Region   string `mapstructure:"region"`
	Profile  string `mapstructure:"profile"`
	Endpoint string `mapstructure:"endpoint"`
	TTL      string `mapstructure:"ttl"`
}

// Load reads the optional config file at path, then applies STRATA_
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("backend", BackendText)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("sql.driver", "sqlite")
	v.SetDefault("text.dir", "./data")
	v.SetDefault("text.shards", 1)
	v.SetDefault("dynamo.ttl", "ttl")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// STRATA_LOG_LEVEL -> log.level
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		prop := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, EnvPrefix), "_", "."))
		v.Set(prop, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend is fully configured.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDynamo:
	case BackendSQL:
		if c.SQL.Driver != "sqlite" && c.SQL.Driver != "pgx" {
			return fmt.Errorf("%w: unknown sql driver %q", ErrInvalidConfig, c.SQL.Driver)
		}
		if c.SQL.DSN == "" {
			return fmt.Errorf("%w: sql.dsn is required", ErrInvalidConfig)
		}
	case BackendText:
		if c.Text.Dir == "" {
			return fmt.Errorf("%w: text.dir is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	return nil
}
