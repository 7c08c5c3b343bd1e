package reputation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

type fakeInvestigate struct {
	mu    sync.Mutex
	calls []string
	// per-path overrides: status code and body
	routes map[string]struct {
		code int
		body string
	}
}

func newFakeInvestigate(t *testing.T) (*fakeInvestigate, *Client) {
	t.Helper()
	f := &fakeInvestigate{routes: map[string]struct {
		code int
		body string
	}{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.URL.RequestURI())
		route, ok := f.routes[r.URL.Path]
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(route.code)
		_, _ = w.Write([]byte(route.body))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "secret", srv.Client())
	require.NoError(t, err)
	return f, client
}

func (f *fakeInvestigate) route(path string, code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = struct {
		code int
		body string
	}{code, body}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("://bad", "secret", nil)
	assert.Error(t, err)

	_, err = NewClient("https://investigate.example", "", nil)
	assert.Error(t, err)

	c, err := NewClient("", "secret", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.base.String())
}

func TestLookupMalicious(t *testing.T) {
	f, client := newFakeInvestigate(t)
	f.route("/domains/categorization/evil.test", 200,
		`{"evil.test":{"status":-1,"security_categories":["Malware","Phishing"],"content_categories":[]}}`)
	f.route("/domains/risk-score/evil.test", 200, `{"risk_score":87}`)

	res, err := client.Lookup(context.Background(), "evil.test")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusMalicious, res.Status)
	assert.Equal(t, 87, res.RiskScore)
	assert.Equal(t, []string{"Malware", "Phishing"}, res.SecurityCategories)
	assert.Nil(t, res.ContentCategories, "empty categories are reported as absent")
	assert.Contains(t, f.calls, "/domains/categorization/evil.test?showLabels")
}

func TestLookupStatusSignals(t *testing.T) {
	cases := map[string]domain.Status{
		`1`:  domain.StatusClean,
		`0`:  domain.StatusUnknown,
		`-1`: domain.StatusMalicious,
	}
	for signal, want := range cases {
		t.Run(signal, func(t *testing.T) {
			f, client := newFakeInvestigate(t)
			f.route("/domains/categorization/x.test", 200, `{"x.test":{"status":`+signal+`}}`)
			f.route("/domains/risk-score/x.test", 200, `{"risk_score":0}`)

			res, err := client.Lookup(context.Background(), "x.test")
			require.NoError(t, err)
			assert.Equal(t, want, res.Status)
		})
	}
}

func TestLookupIndeterminate(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		f, client := newFakeInvestigate(t)
		f.route("/domains/categorization/x.test", 429, `{"errorMessage":"slow down"}`)

		_, err := client.Lookup(context.Background(), "x.test")
		statusErr, ok := support.AsStatus(err)
		require.True(t, ok, "expected status error, got %v", err)
		assert.True(t, statusErr.RateLimited())
		assert.False(t, support.IsTransport(err))
	})

	t.Run("risk score fails", func(t *testing.T) {
		f, client := newFakeInvestigate(t)
		f.route("/domains/categorization/x.test", 200, `{"x.test":{"status":-1}}`)
		f.route("/domains/risk-score/x.test", 500, `oops`)

		_, err := client.Lookup(context.Background(), "x.test")
		require.Error(t, err)
		assert.False(t, support.IsTransport(err))
	})

	t.Run("missing entry", func(t *testing.T) {
		f, client := newFakeInvestigate(t)
		f.route("/domains/categorization/x.test", 200, `{"other.test":{"status":1}}`)

		_, err := client.Lookup(context.Background(), "x.test")
		assert.Error(t, err)
	})

	t.Run("missing status", func(t *testing.T) {
		f, client := newFakeInvestigate(t)
		f.route("/domains/categorization/x.test", 200, `{"x.test":{"security_categories":[]}}`)

		_, err := client.Lookup(context.Background(), "x.test")
		assert.Error(t, err)
	})

	t.Run("risk out of range", func(t *testing.T) {
		f, client := newFakeInvestigate(t)
		f.route("/domains/categorization/x.test", 200, `{"x.test":{"status":0}}`)
		f.route("/domains/risk-score/x.test", 200, `{"risk_score":140}`)

		_, err := client.Lookup(context.Background(), "x.test")
		assert.Error(t, err)
	})
}

func TestLookupTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url, "secret", nil)
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "x.test")
	assert.True(t, support.IsTransport(err), "expected transport error, got %v", err)
}

func TestLookupManyKeepsOrderAndDuplicates(t *testing.T) {
	f, client := newFakeInvestigate(t)
	f.route("/domains/categorization/a.test", 200, `{"a.test":{"status":1}}`)
	f.route("/domains/risk-score/a.test", 200, `{"risk_score":3}`)
	f.route("/domains/categorization/b.test", 403, ``)

	out, err := client.LookupMany(context.Background(), []string{"a.test", "b.test", "a.test"})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "a.test", out[0].Domain)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, "b.test", out[1].Domain)
	assert.Error(t, out[1].Err)
	assert.Equal(t, "a.test", out[2].Domain)

	// two calls per successful lookup, one for the rejected one
	assert.Len(t, f.calls, 5)
}

func TestLatestDomains(t *testing.T) {
	f, client := newFakeInvestigate(t)
	f.route("/ips/203.0.113.5/latest_domains", 200, `[{"id":1,"name":"Evil.Test"},{"id":2,"name":"bad.example"}]`)
	f.route("/ips/198.51.100.7/latest_domains", 200, `[]`)

	names, err := client.LatestDomains(context.Background(), "203.0.113.5")
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.test", "bad.example"}, names)

	names, err = client.LatestDomains(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = client.LatestDomains(context.Background(), "192.0.2.1")
	_, isStatus := support.AsStatus(err)
	assert.True(t, isStatus)
}
