package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jacentio/strata/mapping"
)

// Store saves, finds and deletes mapped entities through a Backend.
type Store struct {
	backend   Backend
	registry  *mapping.Registry
	converter *mapping.Converter
	config    Config
	logger    *slog.Logger
	metrics   *metrics
	observers observers

	// pool bounds backend persistence calls; nil means unbounded.
	pool *ants.Pool

	// inflight collapses concurrent saves of the same entity.
	inflight singleflight.Group

	// waits detects reference cycles between in-flight saves.
	waits waitGraph

	mu     sync.RWMutex
	closed bool
}

// New creates a new Store. The registry is validated once here and must not
// be modified afterwards.
func New(backend Backend, registry *mapping.Registry, config Config) (*Store, error) {
	config.validate()
	if err := registry.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		backend:   backend,
		registry:  registry,
		converter: mapping.NewConverter(registry, config.TypeHandlers),
		config:    config,
		logger:    config.Logger.With("backend", backend.Name()),
		metrics:   newMetrics(config.Registerer),
	}

	if config.MaxConcurrentWrites > 0 {
		pool, err := ants.NewPool(config.MaxConcurrentWrites, ants.WithPanicHandler(func(v any) {
			s.logger.Error("persist worker panic", "panic", v)
		}))
		if err != nil {
			return nil, fmt.Errorf("create write pool: %w", err)
		}
		s.pool = pool
	}
	return s, nil
}

// Registry returns the store's mapping registry.
func (s *Store) Registry() *mapping.Registry {
	return s.registry
}

// Backend returns the store's backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Observe registers an observer.
func (s *Store) Observe(settings ObserverSettings) {
	s.observers.add(settings)
}

// Notify delivers n to the observers registered for its event and type.
func (s *Store) Notify(ctx context.Context, n Notification) error {
	return s.observers.notify(ctx, n)
}

// Close releases the write pool. Pending backend calls are given a few
// seconds to finish.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pool != nil {
		return s.pool.ReleaseTimeout(3 * time.Second)
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
