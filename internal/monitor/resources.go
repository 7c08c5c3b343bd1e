package monitor

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

func (c *Client) Components(ctx context.Context) ([]domain.Component, error) {
	var components []domain.Component
	if err := c.getJSON(ctx, nil, &components, "components"); err != nil {
		return nil, err
	}
	return components, nil
}

func (c *Client) ComponentFlows(ctx context.Context, componentID string) ([]domain.Flow, error) {
	var flows []domain.Flow
	if err := c.getJSON(ctx, nil, &flows, "components", componentID, "flows"); err != nil {
		return nil, err
	}
	return flows, nil
}

// Flows lists the flows active between from and to.
func (c *Client) Flows(ctx context.Context, from, to time.Time) ([]domain.Flow, error) {
	query := url.Values{}
	query.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	query.Set("to", strconv.FormatInt(to.UnixMilli(), 10))

	var flows []domain.Flow
	if err := c.getJSON(ctx, query, &flows, "flows"); err != nil {
		return nil, err
	}
	return flows, nil
}

func (c *Client) Flow(ctx context.Context, flowID string) (domain.FlowDetail, error) {
	var detail domain.FlowDetail
	if err := c.getJSON(ctx, nil, &detail, "flows", flowID); err != nil {
		return domain.FlowDetail{}, err
	}
	if err := support.ValidateStruct(detail); err != nil {
		return domain.FlowDetail{}, fmt.Errorf("monitor: flow %s: %w", flowID, err)
	}
	return detail, nil
}
