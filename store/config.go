package store

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacentio/strata/mapping"
)

// Config holds configuration for the Store.
type Config struct {
	// MaxConcurrentWrites bounds the number of in-flight backend persistence
	// calls across all batches. Nested referenced saves share the bound.
	// Default: 0 (unbounded)
	// Max: 4096
	MaxConcurrentWrites int

	// DrainOnFailure makes Save wait for every dispatched entity of a failed
	// batch before returning. Failures after the first are logged.
	// Default: false
	DrainOnFailure bool

	// TypeHandlers converts plain fields.
	// Default: mapping.DefaultTypeHandlers()
	TypeHandlers *mapping.TypeHandlers

	// Logger receives pipeline diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger

	// Registerer registers the store's metrics. Nil disables registration;
	// the collectors still count.
	Registerer prometheus.Registerer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TypeHandlers: mapping.DefaultTypeHandlers(),
		Logger:       slog.Default(),
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.MaxConcurrentWrites < 0 {
		c.MaxConcurrentWrites = 0
	}
	if c.MaxConcurrentWrites > 4096 {
		c.MaxConcurrentWrites = 4096
	}
	if c.TypeHandlers == nil {
		c.TypeHandlers = mapping.DefaultTypeHandlers()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
