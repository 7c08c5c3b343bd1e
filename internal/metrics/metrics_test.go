package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector(Namespace)
	b := NewCollector(Namespace)

	a.Observations.WithLabelValues("dns").Add(3)
	a.Decisions.WithLabelValues("emit").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(a.Observations.WithLabelValues("dns")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Observations.WithLabelValues("dns")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Decisions.WithLabelValues("emit")))
}

func TestObserveRun(t *testing.T) {
	c := NewCollector(Namespace)

	c.ObserveRun(time.Now().Add(-2*time.Second), errors.New("boom"))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.LastSuccess))

	c.ObserveRun(time.Now(), nil)
	assert.Greater(t, testutil.ToFloat64(c.LastSuccess), 0.0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.RunDuration))
}

func TestPublishResult(t *testing.T) {
	assert.Equal(t, "accepted", PublishResult(200))
	assert.Equal(t, "accepted", PublishResult(204))
	assert.Equal(t, "rate_limited", PublishResult(429))
	assert.Equal(t, "rejected", PublishResult(500))
	assert.Equal(t, "rejected", PublishResult(0))
}

func TestPush(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCollector(Namespace)
	c.Actionable.Add(2)

	require.NoError(t, c.Push(context.Background(), srv.URL, "threatsync", "node-a"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/threatsync/instance/node-a", path)
	assert.NotEmpty(t, body)
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewCollector(Namespace).Push(context.Background(), srv.URL, "threatsync", "")
	assert.Error(t, err)
}
