package support

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	maxResponseBytes = 10 << 20 // 10 MiB safety cap
	maxErrorBody     = 2048
)

// ErrTransport marks failures to reach an API at all (DNS, connect, TLS, timeout).
// They abort the run; status errors do not.
var ErrTransport = errors.New("transport failure")

// StatusError is returned when an API answered with a non-2xx status.
type StatusError struct {
	Service string
	Method  string
	Path    string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %s %s: unexpected status %d", e.Service, e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// RateLimited reports an HTTP 429.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// Unauthorized reports a rejected token or API key.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsTransport reports whether err should abort the current run.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// AsStatus unwraps a *StatusError from err.
func AsStatus(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// NewHTTPClient builds the client shared by the API wrappers. Cyber Vision
// centers commonly run with self-signed certificates, hence insecureTLS.
func NewHTTPClient(timeout time.Duration, insecureTLS bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Send executes req and returns the status code and a size-capped body. Only
// transport failures are returned as errors.
func Send(client *http.Client, req *http.Request, service string) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %s %s: %w: %w", service, req.Method, req.URL.Path, ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: %s %s: read response: %w: %w", service, req.Method, req.URL.Path, ErrTransport, err)
	}
	return resp.StatusCode, body, nil
}

// DoJSON executes req, requires a 2xx status and decodes the body into out
// (skipped when out is nil).
func DoJSON(client *http.Client, req *http.Request, service string, out any) error {
	code, body, err := Send(client, req, service)
	if err != nil {
		return err
	}

	if code < 200 || code >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return &StatusError{
			Service: service,
			Method:  req.Method,
			Path:    req.URL.Path,
			Code:    code,
			Body:    strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode %s response: %w", service, req.URL.Path, err)
	}
	return nil
}
