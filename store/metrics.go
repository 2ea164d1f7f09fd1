package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	writes   *prometheus.CounterVec
	failures *prometheus.CounterVec
	queries  *prometheus.CounterVec
	batch    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_entity_writes_total",
				Help: "Total number of persisted entities",
			},
			[]string{"backend", "type", "action"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_operation_failures_total",
				Help: "Total number of failed store operations",
			},
			[]string{"backend", "type", "op"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_queries_total",
				Help: "Total number of backend queries",
			},
			[]string{"backend", "type"},
		),
		batch: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "strata_save_batch_size",
				Help:    "Number of entities per save batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
	if reg == nil {
		return m
	}
	m.writes = register(reg, m.writes)
	m.failures = register(reg, m.failures)
	m.queries = register(reg, m.queries)
	m.batch = register(reg, m.batch)
	return m
}

// register reuses an identical collector registered by another Store.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
