package monitor

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

// Publish posts payload to the extension report endpoint once. The response
// status is logged and never turned into an error; only a failure to reach
// the center is returned.
func (c *Client) Publish(ctx context.Context, payload domain.EventPayload) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.base.JoinPath(c.eventPath).String(), payload)
	if err != nil {
		return 0, err
	}

	code, body, err := support.Send(c.http, req, serviceName)
	if err != nil {
		return 0, err
	}

	if code < 200 || code >= 300 {
		log.Warn("Event rejected by Cyber Vision", "status", code, "body", truncate(string(body), 256))
	} else {
		log.Info("Event pushed to Cyber Vision", "status", code)
	}
	return code, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
