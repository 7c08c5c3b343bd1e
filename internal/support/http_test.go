package support

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoJSONDecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"risk_score": 42}`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/domains/risk-score/x", nil)
	var out struct {
		RiskScore int `json:"risk_score"`
	}
	if err := DoJSON(srv.Client(), req, "test", &out); err != nil {
		t.Fatalf("DoJSON returned error: %v", err)
	}
	if out.RiskScore != 42 {
		t.Fatalf("risk score = %d, want 42", out.RiskScore)
	}
}

func TestDoJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/limited", nil)
	err := DoJSON(srv.Client(), req, "test", nil)

	statusErr, ok := AsStatus(err)
	if !ok {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if !statusErr.RateLimited() {
		t.Fatalf("expected rate limited, got code %d", statusErr.Code)
	}
	if statusErr.Body != "slow down" {
		t.Fatalf("body = %q, want %q", statusErr.Body, "slow down")
	}
	if IsTransport(err) {
		t.Fatal("status errors must not be classified as transport failures")
	}
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	req, _ := http.NewRequest(http.MethodGet, url+"/gone", nil)
	_, _, err := Send(NewHTTPClient(time.Second, false), req, "test")
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, ok := AsStatus(err); ok {
		t.Fatal("transport errors must not carry a status")
	}
}

func TestDoJSONDecodeErrorIsNotTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	var out map[string]any
	err := DoJSON(srv.Client(), req, "test", &out)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrTransport) {
		t.Fatal("decode errors must not be transport failures")
	}
}
