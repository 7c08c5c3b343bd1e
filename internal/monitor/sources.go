package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/ipclass"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

const day = 24 * time.Hour

// ErrPeriodRequired is returned by PublicIPSightings when no lookback is set.
var ErrPeriodRequired = errors.New("monitor: the flows source needs a positive period")

// DNSObservations collects the DNS flows seen by every component whose first
// tag is DNS_SERVER. Each flow yields its first property as the domain, the
// left endpoint as the querying IP and its first activity as the time. A
// period of zero keeps every flow; otherwise flows whose age in whole days
// exceeds period are dropped.
//
// Flows or components the API refuses are logged and skipped. Transport
// failures abort the collection.
func (c *Client) DNSObservations(ctx context.Context, period int, now time.Time) ([]domain.Observation, error) {
	if period < 0 {
		return nil, fmt.Errorf("monitor: period must not be negative, got %d", period)
	}

	components, err := c.Components(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: list components: %w", err)
	}

	var flowIDs []string
	servers := 0
	for _, comp := range components {
		if !comp.HasPrimaryTag(domain.TagDNSServer) {
			continue
		}
		servers++

		flows, err := c.ComponentFlows(ctx, comp.ID)
		if err != nil {
			if support.IsTransport(err) {
				return nil, err
			}
			log.Warn("Skipping DNS server flows", "component", comp.ID, "error", err)
			continue
		}
		for _, f := range flows {
			if f.HasPrimaryTag(domain.TagDNS) {
				flowIDs = append(flowIDs, f.ID)
			}
		}
	}
	log.Info("DNS flows found", "dns_servers", servers, "flows", len(flowIDs))

	nowWall := domain.TimestampOf(now.In(c.loc))
	var observations []domain.Observation
	for _, id := range flowIDs {
		detail, err := c.Flow(ctx, id)
		if err != nil {
			if support.IsTransport(err) {
				return nil, err
			}
			log.Warn("Skipping DNS flow", "flow", id, "error", err)
			continue
		}

		if len(detail.Properties) == 0 || detail.Properties[0].Value == "" {
			log.Warn("DNS flow carries no queried name, skipping", "flow", id)
			continue
		}

		seen := domain.TimestampFromUnixMillis(detail.FirstActivity, c.loc)
		if period > 0 && int(nowWall.Sub(seen)/day) > period {
			continue
		}

		obs := domain.Observation{
			Domain: domain.NormalizeDomain(detail.Properties[0].Value),
			Time:   seen,
		}
		if detail.Left != nil {
			obs.IP = detail.Left.IP
		}
		if !obs.HasIP() {
			log.Debug("DNS flow has no client address", "flow", id, "domain", obs.Domain)
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// PublicIPSightings lists the public IPv4 addresses found on either side of the
// flows active in the last period days, each with the earliest first activity
// among its flows. Addresses keep the order in which they were first met.
func (c *Client) PublicIPSightings(ctx context.Context, period int, now time.Time) ([]domain.IPSighting, error) {
	if period <= 0 {
		return nil, ErrPeriodRequired
	}
	from := now.Add(-time.Duration(period) * day)
	if from.UnixMilli() <= 0 {
		return nil, fmt.Errorf("monitor: period of %d days reaches before the epoch", period)
	}

	flows, err := c.Flows(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("monitor: list flows: %w", err)
	}

	var (
		order    []string
		earliest = make(map[string]int64)
	)
	for _, f := range flows {
		detail, err := c.Flow(ctx, f.ID)
		if err != nil {
			if support.IsTransport(err) {
				return nil, err
			}
			log.Warn("Skipping flow", "flow", f.ID, "error", err)
			continue
		}

		for _, side := range []*domain.Endpoint{detail.Left, detail.Right} {
			if side == nil || side.IP == "" {
				log.Debug("Flow side has no address", "flow", f.ID)
				continue
			}
			if !ipclass.IsPublic(side.IP) {
				log.Debug("Skipping non-public address", "flow", f.ID, "ip", side.IP, "block", ipclass.Reserved(side.IP))
				continue
			}
			prev, known := earliest[side.IP]
			if !known {
				order = append(order, side.IP)
				earliest[side.IP] = detail.FirstActivity
			} else if detail.FirstActivity < prev {
				earliest[side.IP] = detail.FirstActivity
			}
		}
	}

	sightings := make([]domain.IPSighting, 0, len(order))
	for _, ip := range order {
		sightings = append(sightings, domain.IPSighting{
			IP:        ip,
			FirstSeen: domain.TimestampFromUnixMillis(earliest[ip], c.loc),
		})
	}
	log.Info("Public addresses found in flows", "flows", len(flows), "addresses", len(sightings), "period_days", period)
	return sightings, nil
}
