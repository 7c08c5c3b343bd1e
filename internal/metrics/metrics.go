// Package metrics counts what a threatsync run did and pushes the numbers to a
// Prometheus pushgateway, since a batch job does not live long enough to be
// scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const Namespace = "threatsync"

// Collector holds the run metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	Observations    *prometheus.CounterVec
	LookupFailures  prometheus.Counter
	Actionable      prometheus.Counter
	Decisions       *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	ReverseLookups  *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastSuccess     prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_total",
				Help:      "Domain observations read from Cyber Vision",
			},
			[]string{"source"},
		),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reputation_lookup_failures_total",
			Help:      "Reputation lookups that returned no verdict",
		}),
		Actionable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actionable_observations_total",
			Help:      "Observations rated malicious or unknown",
		}),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suppression_decisions_total",
				Help:      "Suppression policy decisions",
			},
			[]string{"decision"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Events posted to Cyber Vision by response class",
			},
			[]string{"result"},
		),
		ReverseLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reverse_lookups_total",
				Help:      "IP to domain lookups by result",
			},
			[]string{"result"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without error",
		}),
	}

	registry.MustRegister(
		c.Observations,
		c.LookupFailures,
		c.Actionable,
		c.Decisions,
		c.EventsPublished,
		c.ReverseLookups,
		c.RunDuration,
		c.LastSuccess,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRun records the duration of a run and, when it succeeded, its end time.
func (c *Collector) ObserveRun(started time.Time, err error) {
	c.RunDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		c.LastSuccess.SetToCurrentTime()
	}
}

// PublishResult classifies an HTTP status for EventsPublished.
func PublishResult(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "accepted"
	case code == 429:
		return "rate_limited"
	default:
		return "rejected"
	}
}

// Push replaces the job's metric group on the pushgateway at url.
func (c *Collector) Push(ctx context.Context, url, job, instance string) error {
	pusher := push.New(url, job).Gatherer(c.registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
