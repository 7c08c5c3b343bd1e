package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

// GroupRequest is the body of POST /groups.
type GroupRequest struct {
	Color        string `json:"color"`
	Comments     string `json:"comments"`
	Criticalness int    `json:"criticalness"`
	Description  string `json:"description"`
	Label        string `json:"label" validate:"required"`
	Locked       bool   `json:"locked"`
}

type patchOp struct {
	Op    string   `json:"op"`
	Path  string   `json:"path"`
	Value []string `json:"value"`
}

type createdGroup struct {
	ID string `json:"id" validate:"required"`
}

// CreateGroup creates a group and returns its id.
func (c *Client) CreateGroup(ctx context.Context, group GroupRequest) (string, error) {
	if err := support.ValidateStruct(group); err != nil {
		return "", fmt.Errorf("monitor: create group: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(nil, "groups"), group)
	if err != nil {
		return "", err
	}

	var created createdGroup
	if err := report(support.DoJSON(c.http, req, serviceName, &created)); err != nil {
		return "", fmt.Errorf("monitor: create group %q: %w", group.Label, err)
	}
	if err := support.ValidateStruct(created); err != nil {
		return "", fmt.Errorf("monitor: create group %q: response: %w", group.Label, err)
	}
	return created.ID, nil
}

// AddComponentsToGroup attaches componentIDs to an existing group.
func (c *Client) AddComponentsToGroup(ctx context.Context, groupID string, componentIDs []string) error {
	if groupID == "" {
		return errors.New("monitor: group id is required")
	}
	if len(componentIDs) == 0 {
		return nil
	}

	body := patchOp{Op: "add", Path: "/components", Value: componentIDs}
	req, err := c.newRequest(ctx, http.MethodPatch, c.endpoint(nil, "groups", groupID), body)
	if err != nil {
		return err
	}
	if err := report(support.DoJSON(c.http, req, serviceName, nil)); err != nil {
		return fmt.Errorf("monitor: add %d components to group %s: %w", len(componentIDs), groupID, err)
	}
	return nil
}
