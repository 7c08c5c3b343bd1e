// Package suppression decides whether an actionable sighting becomes an alert.
// A domain alerts on its first sighting and again only once the cooldown has
// passed since the sighting recorded before it.
package suppression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/history"
)

type Decision uint8

const (
	Suppress Decision = iota
	Emit
)

func (d Decision) String() string {
	switch d {
	case Emit:
		return "emit"
	case Suppress:
		return "suppress"
	default:
		return fmt.Sprintf("decision(%d)", uint8(d))
	}
}

type Policy struct {
	store    history.Store
	cooldown time.Duration
}

// New builds a policy with a cooldown of cooldownDays whole days.
func New(store history.Store, cooldownDays int) (*Policy, error) {
	if store == nil {
		return nil, errors.New("suppression: history store is required")
	}
	if cooldownDays <= 0 {
		return nil, fmt.Errorf("suppression: cooldown must be a positive number of days, got %d", cooldownDays)
	}
	return &Policy{store: store, cooldown: time.Duration(cooldownDays) * 24 * time.Hour}, nil
}

func (p *Policy) Cooldown() time.Duration { return p.cooldown }

// Process records obs in the domain history and returns the decision. The
// comparison uses the last appended sighting, not the latest by time, and the
// cooldown must be strictly exceeded. Every sighting is appended, whatever the
// decision.
func (p *Policy) Process(ctx context.Context, obs domain.Observation) (Decision, error) {
	rec, found, err := p.store.Lookup(ctx, obs.Domain)
	if err != nil {
		return Suppress, err
	}

	decision := Emit
	var elapsed time.Duration
	if found {
		last, ok := rec.Last()
		if !ok || !rec.Consistent() {
			return Suppress, fmt.Errorf("%w: record %q: count %d, %d queries",
				history.ErrCorrupt, obs.Domain, rec.Count, len(rec.Queries))
		}
		elapsed = obs.Time.Sub(last.Time)
		if elapsed <= p.cooldown {
			decision = Suppress
		}
	}

	updated, err := p.store.Append(ctx, obs.Domain, domain.Query{IP: obs.IP, Time: obs.Time})
	if err != nil {
		return Suppress, err
	}

	switch {
	case !found:
		log.Info("Domain never seen before, alerting", "domain", obs.Domain, "ip", obs.IP, "time", obs.Time)
	case decision == Emit:
		log.Info("Domain seen again after cooldown, alerting",
			"domain", obs.Domain, "elapsed", elapsed, "cooldown", p.cooldown, "count", updated.Count)
	default:
		log.Info("Domain seen again within cooldown, suppressed",
			"domain", obs.Domain, "elapsed", elapsed, "cooldown", p.cooldown, "count", updated.Count)
	}
	return decision, nil
}
