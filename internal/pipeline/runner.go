// Package pipeline runs one threatsync batch: read observations from Cyber
// Vision, keep the actionable ones, apply the suppression policy and post an
// alert for every sighting the policy lets through.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/event"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/filter"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/geo"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/metrics"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/suppression"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

const (
	SourceDNS   = "dns"
	SourceFlows = "flows"
)

// Monitor is the Cyber Vision side of a run.
type Monitor interface {
	DNSObservations(ctx context.Context, period int, now time.Time) ([]domain.Observation, error)
	PublicIPSightings(ctx context.Context, period int, now time.Time) ([]domain.IPSighting, error)
	Publish(ctx context.Context, payload domain.EventPayload) (int, error)
}

// Reputation is the Umbrella side of a run.
type Reputation interface {
	filter.Lookuper
	LatestDomains(ctx context.Context, ip string) ([]string, error)
}

type Config struct {
	Monitor    Monitor
	Reputation Reputation
	Policy     *suppression.Policy
	// Period is the lookback in days; zero means unrestricted.
	Period  int
	Metrics *metrics.Collector
	Geo     *geo.Locator
	Now     func() time.Time
}

type Runner struct {
	monitor    Monitor
	reputation Reputation
	filter     *filter.Filter
	policy     *suppression.Policy
	period     int
	metrics    *metrics.Collector
	geo        *geo.Locator
	now        func() time.Time
}

func New(cfg Config) (*Runner, error) {
	switch {
	case cfg.Monitor == nil:
		return nil, errors.New("pipeline: monitor client is required")
	case cfg.Reputation == nil:
		return nil, errors.New("pipeline: reputation client is required")
	case cfg.Policy == nil:
		return nil, errors.New("pipeline: suppression policy is required")
	case cfg.Period < 0:
		return nil, fmt.Errorf("pipeline: period must not be negative, got %d", cfg.Period)
	}

	r := &Runner{
		monitor:    cfg.Monitor,
		reputation: cfg.Reputation,
		filter:     filter.New(cfg.Reputation),
		policy:     cfg.Policy,
		period:     cfg.Period,
		metrics:    cfg.Metrics,
		geo:        cfg.Geo,
		now:        cfg.Now,
	}
	if r.metrics == nil {
		r.metrics = metrics.NewCollector(metrics.Namespace)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Report summarizes one run.
type Report struct {
	RunID        string
	Source       string
	Observations int
	Actionable   int
	Clean        int
	Failed       int
	Emitted      int
	Suppressed   int
	Published    int
	Rejected     int
}

// Run dispatches to RunDNS or RunFlows.
func (r *Runner) Run(ctx context.Context, source string) (Report, error) {
	switch source {
	case SourceDNS:
		return r.RunDNS(ctx)
	case SourceFlows:
		return r.RunFlows(ctx)
	default:
		return Report{}, fmt.Errorf("pipeline: unknown source %q (want %s or %s)", source, SourceDNS, SourceFlows)
	}
}

// RunDNS processes the DNS queries resolved by the DNS servers Cyber Vision knows.
func (r *Runner) RunDNS(ctx context.Context) (rep Report, err error) {
	started := r.now()
	defer func() { r.metrics.ObserveRun(started, err) }()

	rep = newReport(SourceDNS)
	logger := log.With("run_id", rep.RunID, "source", SourceDNS)
	logger.Info("Retrieving DNS queries from Cyber Vision", "period_days", r.period)

	observations, err := r.monitor.DNSObservations(ctx, r.period, started)
	if err != nil {
		return rep, fmt.Errorf("pipeline: dns observations: %w", err)
	}
	return r.process(ctx, logger, rep, observations)
}

// RunFlows reverse-resolves the public addresses seen in recent flows and
// processes the resulting domains. Every domain of an address is observed at
// the address's first activity.
func (r *Runner) RunFlows(ctx context.Context) (rep Report, err error) {
	started := r.now()
	defer func() { r.metrics.ObserveRun(started, err) }()

	rep = newReport(SourceFlows)
	logger := log.With("run_id", rep.RunID, "source", SourceFlows)
	logger.Info("Retrieving public addresses from Cyber Vision flows", "period_days", r.period)

	sightings, err := r.monitor.PublicIPSightings(ctx, r.period, started)
	if err != nil {
		return rep, fmt.Errorf("pipeline: public ip sightings: %w", err)
	}

	var observations []domain.Observation
	for _, s := range sightings {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		names, err := r.reputation.LatestDomains(ctx, s.IP)
		if err != nil {
			if support.IsTransport(err) {
				return rep, fmt.Errorf("pipeline: reverse lookup %s: %w", s.IP, err)
			}
			r.metrics.ReverseLookups.WithLabelValues("failed").Inc()
			logger.Warn("Reverse lookup failed, skipping address", "ip", s.IP, "error", err)
			continue
		}
		if len(names) == 0 {
			r.metrics.ReverseLookups.WithLabelValues("empty").Inc()
			continue
		}
		r.metrics.ReverseLookups.WithLabelValues("found").Inc()

		if r.geo.Enabled() {
			logger.Info("Public address resolves to listed domains",
				"ip", s.IP, "domains", len(names), "country", r.geo.Country(s.IP), "asn", r.geo.Organization(s.IP))
		}
		for _, name := range names {
			observations = append(observations, domain.Observation{Domain: name, IP: s.IP, Time: s.FirstSeen})
		}
	}
	return r.process(ctx, logger, rep, observations)
}

// Process runs a prepared batch of observations through the filter, the
// policy and the publisher.
func (r *Runner) Process(ctx context.Context, observations []domain.Observation) (Report, error) {
	rep := newReport("batch")
	return r.process(ctx, log.With("run_id", rep.RunID), rep, observations)
}

func (r *Runner) process(ctx context.Context, logger *log.Logger, rep Report, observations []domain.Observation) (Report, error) {
	rep.Observations = len(observations)
	r.metrics.Observations.WithLabelValues(rep.Source).Add(float64(len(observations)))

	filtered, err := r.filter.Apply(ctx, observations)
	rep.Actionable = len(filtered.Actionable)
	rep.Clean = filtered.Clean
	rep.Failed = len(filtered.Failed)
	r.metrics.Actionable.Add(float64(rep.Actionable))
	r.metrics.LookupFailures.Add(float64(rep.Failed))
	if err != nil {
		return rep, fmt.Errorf("pipeline: reputation filter: %w", err)
	}

	for _, finding := range filtered.Actionable {
		obs := finding.Observation

		decision, err := r.policy.Process(ctx, obs)
		if err != nil {
			return rep, fmt.Errorf("pipeline: suppression %q: %w", obs.Domain, err)
		}
		r.metrics.Decisions.WithLabelValues(decision.String()).Inc()
		if decision == suppression.Suppress {
			rep.Suppressed++
			continue
		}
		rep.Emitted++

		result, err := r.freshVerdict(ctx, finding)
		if err != nil {
			return rep, err
		}

		code, err := r.monitor.Publish(ctx, event.Format(result, obs))
		if err != nil {
			return rep, fmt.Errorf("pipeline: publish %q: %w", obs.Domain, err)
		}
		r.metrics.EventsPublished.WithLabelValues(metrics.PublishResult(code)).Inc()
		if code >= 200 && code < 300 {
			rep.Published++
		} else {
			rep.Rejected++
		}
	}

	logger.Info("Run finished",
		"observations", rep.Observations,
		"actionable", rep.Actionable,
		"clean", rep.Clean,
		"lookup_failed", rep.Failed,
		"emitted", rep.Emitted,
		"suppressed", rep.Suppressed,
		"published", rep.Published,
		"rejected", rep.Rejected)
	return rep, nil
}

// freshVerdict looks the domain up again so the alert reflects Umbrella's
// current view. When that lookup is refused the filter's verdict is used.
func (r *Runner) freshVerdict(ctx context.Context, finding filter.Finding) (domain.ReputationResult, error) {
	result, err := r.reputation.Lookup(ctx, finding.Observation.Domain)
	if err == nil {
		return result, nil
	}
	if support.IsTransport(err) {
		return domain.ReputationResult{}, fmt.Errorf("pipeline: reputation %q: %w", finding.Observation.Domain, err)
	}
	r.metrics.LookupFailures.Inc()
	log.Warn("Fresh reputation lookup failed, alerting with the earlier verdict",
		"domain", finding.Observation.Domain, "error", err)
	return finding.Result, nil
}

func newReport(source string) Report {
	return Report{RunID: uuid.NewString(), Source: source}
}
