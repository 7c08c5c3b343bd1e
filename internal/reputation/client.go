// Package reputation wraps the Umbrella Investigate API: domain categorization,
// risk score and the IP to domain reverse lookup.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

const (
	serviceName = "investigate"

	DefaultBaseURL = "https://investigate.api.umbrella.com"
)

type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("reputation: invalid base URL %q", baseURL)
	}
	if token == "" {
		return nil, errors.New("reputation: investigate token is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, token: token, http: httpClient}, nil
}

type categorization struct {
	Status             *int     `json:"status" validate:"required"`
	SecurityCategories []string `json:"security_categories"`
	ContentCategories  []string `json:"content_categories"`
}

type riskScore struct {
	RiskScore *int `json:"risk_score" validate:"required,min=0,max=100"`
}

type latestDomain struct {
	Name string `json:"name"`
}

// Lookup categorizes name and fetches its risk score. Both calls must succeed;
// any error leaves the result indeterminate. Transport failures can be told
// apart with support.IsTransport.
func (c *Client) Lookup(ctx context.Context, name string) (domain.ReputationResult, error) {
	var cats map[string]categorization
	if err := c.get(ctx, "showLabels", &cats, "domains", "categorization", name); err != nil {
		return domain.ReputationResult{}, c.report(name, err)
	}

	cat, ok := cats[name]
	if !ok {
		return domain.ReputationResult{}, fmt.Errorf("reputation: categorization response has no entry for %q", name)
	}
	if err := support.ValidateStruct(cat); err != nil {
		return domain.ReputationResult{}, fmt.Errorf("reputation: categorization of %q: %w", name, err)
	}
	status, err := domain.StatusFromSignal(*cat.Status)
	if err != nil {
		return domain.ReputationResult{}, fmt.Errorf("reputation: categorization of %q: %w", name, err)
	}

	var risk riskScore
	if err := c.get(ctx, "", &risk, "domains", "risk-score", name); err != nil {
		return domain.ReputationResult{}, c.report(name, err)
	}
	if err := support.ValidateStruct(risk); err != nil {
		return domain.ReputationResult{}, fmt.Errorf("reputation: risk score of %q: %w", name, err)
	}

	return domain.ReputationResult{
		Domain:             name,
		Status:             status,
		RiskScore:          *risk.RiskScore,
		SecurityCategories: nonEmpty(cat.SecurityCategories),
		ContentCategories:  nonEmpty(cat.ContentCategories),
	}, nil
}

// Outcome is one entry of LookupMany; exactly one of Result or Err is meaningful.
type Outcome struct {
	Domain string
	Result domain.ReputationResult
	Err    error
}

// LookupMany looks up every name in order, duplicates included. It stops early
// only on a transport failure or a cancelled context, returning the outcomes
// gathered so far.
func (c *Client) LookupMany(ctx context.Context, names []string) ([]Outcome, error) {
	out := make([]Outcome, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := c.Lookup(ctx, name)
		if support.IsTransport(err) {
			return out, err
		}
		out = append(out, Outcome{Domain: name, Result: res, Err: err})
	}
	return out, nil
}

// LatestDomains returns the domains Umbrella has recently seen resolving to ip.
// An empty slice means none are listed.
func (c *Client) LatestDomains(ctx context.Context, ip string) ([]string, error) {
	var entries []latestDomain
	if err := c.get(ctx, "", &entries, "ips", ip, "latest_domains"); err != nil {
		return nil, c.report(ip, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if n := domain.NormalizeDomain(e.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		log.Info("No domains listed for IP", "ip", ip)
	}
	return names, nil
}

func (c *Client) get(ctx context.Context, rawQuery string, out any, segments ...string) error {
	u := c.base.JoinPath(segments...)
	u.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("reputation: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	return support.DoJSON(c.http, req, serviceName, out)
}

// report logs upstream status failures the way an operator needs to see them
// and passes err through unchanged.
func (c *Client) report(subject string, err error) error {
	statusErr, ok := support.AsStatus(err)
	if !ok {
		return err
	}
	switch {
	case statusErr.RateLimited():
		log.Warn("Investigate rate limit reached", "subject", subject, "path", statusErr.Path)
	case statusErr.Unauthorized():
		log.Error("Investigate rejected the API token, check INVESTIGATE_TOKEN", "subject", subject, "status", statusErr.Code)
	default:
		log.Warn("Investigate request failed", "subject", subject, "path", statusErr.Path, "status", statusErr.Code)
	}
	return err
}

func nonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}
