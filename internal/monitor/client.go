// Package monitor talks to the Cyber Vision center REST API: it reads
// components and flows, posts extension alerts and manages groups.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

const (
	serviceName = "cybervision"

	DefaultEventPath = "extension/test/report"
)

type Options struct {
	// BaseURL is the API root, e.g. https://center.local/api/3.0.
	BaseURL string
	Token   string
	// EventPath is resolved against BaseURL.
	EventPath string
	HTTP      *http.Client
	// Location is the zone flow timestamps are rendered in. Defaults to time.Local.
	Location *time.Location
}

type Client struct {
	base      *url.URL
	token     string
	eventPath string
	http      *http.Client
	loc       *time.Location
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("monitor: invalid base URL %q", opts.BaseURL)
	}
	if opts.Token == "" {
		return nil, errors.New("monitor: x-token-id is required")
	}

	c := &Client{
		base:      base,
		token:     opts.Token,
		eventPath: opts.EventPath,
		http:      opts.HTTP,
		loc:       opts.Location,
	}
	if c.eventPath == "" {
		c.eventPath = DefaultEventPath
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.base.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("monitor: encode %s body: %w", method, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("monitor: build request: %w", err)
	}
	req.Header.Set("x-token-id", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, query url.Values, out any, segments ...string) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(query, segments...), nil)
	if err != nil {
		return err
	}
	return report(support.DoJSON(c.http, req, serviceName, out))
}

func report(err error) error {
	if statusErr, ok := support.AsStatus(err); ok {
		switch {
		case statusErr.RateLimited():
			log.Warn("Cyber Vision API call limit exceeded", "path", statusErr.Path)
		case statusErr.Unauthorized():
			log.Error("Cyber Vision rejected the token, check MONITOR_TOKEN", "path", statusErr.Path, "status", statusErr.Code)
		}
	}
	return err
}
