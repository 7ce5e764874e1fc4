// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package metrics reports path validation activity to Prometheus.
//
// All methods are safe to call on a nil [*Metrics], so components can take
// an optional reporter without guarding every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "x509_path_validator"

// Cache event labels.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheEviction = "eviction"
	CacheCleanup  = "cleanup"
	CacheStore    = "store"
)

// Metrics holds the collectors registered by [New].
type Metrics struct {
	validations        *prometheus.CounterVec
	validationDuration prometheus.Histogram
	revocationFetches  *prometheus.CounterVec
	cacheEvents        *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses
// [prometheus.DefaultRegisterer].
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "validations_total",
			Help:      "Total number of path validations by overall result code",
		}, []string{"result", "successful"}),

		validationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "validation_duration_seconds",
			Help:      "Duration of path validations",
			Buckets:   prometheus.DefBuckets,
		}),

		revocationFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "revocation_fetches_total",
			Help:      "Total number of online revocation fetches",
		}, []string{"kind", "outcome"}), // kind: crl, ocsp; outcome: ok, error, http_error, skipped

		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crl_cache_events_total",
			Help:      "Total number of CRL cache events",
		}, []string{"event"}),
	}
}

// RecordValidation records the outcome of one validation call.
func (m *Metrics) RecordValidation(result string, successful bool, d time.Duration) {
	if m == nil {
		return
	}
	ok := "false"
	if successful {
		ok = "true"
	}
	m.validations.WithLabelValues(result, ok).Inc()
	m.validationDuration.Observe(d.Seconds())
}

// RecordFetch records one online revocation fetch.
func (m *Metrics) RecordFetch(kind, outcome string) {
	if m == nil {
		return
	}
	m.revocationFetches.WithLabelValues(kind, outcome).Inc()
}

// RecordCache records n cache events of the given kind.
func (m *Metrics) RecordCache(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvents.WithLabelValues(event).Add(float64(n))
}
