// Package filter keeps the observations whose domain Umbrella rates malicious
// or unknown.
package filter

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

type Lookuper interface {
	Lookup(ctx context.Context, name string) (domain.ReputationResult, error)
}

// Finding is an actionable observation and the verdict that made it so.
type Finding struct {
	Observation domain.Observation
	Result      domain.ReputationResult
}

// Failure is an observation whose lookup did not complete. It is neither
// actionable nor clean.
type Failure struct {
	Observation domain.Observation
	Err         error
}

type Result struct {
	Actionable []Finding
	Failed     []Failure
	Clean      int
}

type Filter struct {
	lookup Lookuper
}

func New(lookup Lookuper) *Filter {
	return &Filter{lookup: lookup}
}

// Apply looks up every observation in order, one call per observation even
// when a domain repeats. Actionable keeps the input order. A transport failure
// or a cancelled context aborts the batch and is returned with the partial
// result.
func (f *Filter) Apply(ctx context.Context, observations []domain.Observation) (Result, error) {
	var res Result
	for _, obs := range observations {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rep, err := f.lookup.Lookup(ctx, obs.Domain)
		if err != nil {
			if support.IsTransport(err) {
				return res, err
			}
			log.Warn("Reputation lookup failed, skipping observation", "domain", obs.Domain, "ip", obs.IP, "error", err)
			res.Failed = append(res.Failed, Failure{Observation: obs, Err: err})
			continue
		}

		if !rep.Status.Actionable() {
			res.Clean++
			continue
		}
		res.Actionable = append(res.Actionable, Finding{Observation: obs, Result: rep})
	}

	log.Info("Reputation filter done",
		"observations", len(observations),
		"actionable", len(res.Actionable),
		"clean", res.Clean,
		"failed", len(res.Failed))
	return res, nil
}
