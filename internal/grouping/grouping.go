// Package grouping sorts the ungrouped Cyber Vision components into one group
// per vendor.
package grouping

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/monitor"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

const (
	GroupDescription = "Automated Grouping by vendor"
	GroupColor       = "#000000"
	DefaultComment   = "api automatic grouping GVE project"
)

var vendorKeys = map[string]bool{"vendor": true, "vendor-name": true}

// VendorGroup is a group to create: its vendor label and the component ids.
type VendorGroup struct {
	Vendor       string
	ComponentIDs []string
}

// API is the part of the Cyber Vision client the grouping needs.
type API interface {
	Components(ctx context.Context) ([]domain.Component, error)
	CreateGroup(ctx context.Context, group monitor.GroupRequest) (string, error)
	AddComponentsToGroup(ctx context.Context, groupID string, componentIDs []string) error
}

// Plan groups the components that belong to no group by the value of their
// vendor or vendor-name properties. Vendors appear in the order they are first
// met and a component is listed once per vendor. A component carrying both keys
// with different values joins both groups.
func Plan(components []domain.Component) []VendorGroup {
	var (
		plan  []VendorGroup
		index = map[string]int{}
		seen  = map[string]map[string]bool{}
	)
	for _, comp := range components {
		if comp.Group != nil || comp.ID == "" {
			continue
		}
		for _, p := range comp.NormalizedProperties {
			if !vendorKeys[p.Key] || p.Value == "" {
				continue
			}
			i, ok := index[p.Value]
			if !ok {
				i = len(plan)
				index[p.Value] = i
				plan = append(plan, VendorGroup{Vendor: p.Value})
				seen[p.Value] = map[string]bool{}
			}
			if seen[p.Value][comp.ID] {
				continue
			}
			seen[p.Value][comp.ID] = true
			plan[i].ComponentIDs = append(plan[i].ComponentIDs, comp.ID)
		}
	}
	return plan
}

// Summary counts what Apply did.
type Summary struct {
	Groups     int
	Components int
	Failed     []string
}

// Apply creates one group per planned vendor and attaches its components.
// A vendor the center refuses is logged and skipped; a transport failure stops
// the run.
func Apply(ctx context.Context, api API, plan []VendorGroup, comment string) (Summary, error) {
	var sum Summary
	for _, vg := range plan {
		if len(vg.ComponentIDs) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		id, err := api.CreateGroup(ctx, monitor.GroupRequest{
			Color:       GroupColor,
			Comments:    comment,
			Description: GroupDescription,
			Label:       vg.Vendor,
		})
		if err == nil {
			err = api.AddComponentsToGroup(ctx, id, vg.ComponentIDs)
		}
		if err != nil {
			if support.IsTransport(err) {
				return sum, fmt.Errorf("grouping: vendor %q: %w", vg.Vendor, err)
			}
			log.Warn("Vendor group not created", "vendor", vg.Vendor, "error", err)
			sum.Failed = append(sum.Failed, vg.Vendor)
			continue
		}

		log.Info("Vendor group created", "vendor", vg.Vendor, "group", id, "components", len(vg.ComponentIDs))
		sum.Groups++
		sum.Components += len(vg.ComponentIDs)
	}
	return sum, nil
}

// Run lists the components, plans the vendor groups and applies them.
func Run(ctx context.Context, api API, comment string) (Summary, error) {
	components, err := api.Components(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("grouping: list components: %w", err)
	}

	plan := Plan(components)
	if len(plan) == 0 {
		log.Info("All components are already grouped")
		return Summary{}, nil
	}
	return Apply(ctx, api, plan, comment)
}
