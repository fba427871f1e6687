// ABOUTME: Upstream record store client (Table API) with basic auth
// ABOUTME: Per-call timeout, bounded retry with exponential backoff, typed errors

package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mthomas/servicedesk-bff/models"
)

// initialBackoff is the first retry delay; it doubles on each attempt.
const initialBackoff = 100 * time.Millisecond

// Client issues authenticated HTTP calls to the upstream record store.
// Every call authenticates with the basic credential it is handed, so a
// single client serves all sessions regardless of delegation mode.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
}

// ClientOptions configures an upstream client.
type ClientOptions struct {
	BaseURL       string
	Timeout       time.Duration // per upstream call, including body read
	Retries       int           // extra attempts on retryable failure
	SkipSSLVerify bool
	Proxy         string // optional ssh+socks5:// egress proxy
}

// NewClient builds an upstream client. The HTTP client carries no global
// timeout; the per-call deadline is applied via context in Do so a
// timed-out request is aborted in flight.
func NewClient(opts ClientOptions) *Client {
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.SkipSSLVerify},
		TLSHandshakeTimeout: 30 * time.Second,
	}

	if opts.Proxy != "" {
		if dialContext := createSOCKS5DialContextFunc(opts.Proxy); dialContext != nil {
			transport.DialContext = dialContext
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: &http.Client{Transport: transport},
		timeout:    timeout,
		retries:    retries,
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Do issues one upstream call as the given credential and returns the
// parsed response body. Retries up to the configured budget on 5xx and
// network-level failure with exponential backoff starting at 100ms;
// 4xx failures are reported immediately.
func (c *Client) Do(ctx context.Context, cred models.Credential, method, pathWithQuery string, body []byte) (gjson.Result, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return gjson.Result{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, err := c.attempt(ctx, cred, method, pathWithQuery, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return gjson.Result{}, err
		}
	}

	return gjson.Result{}, lastErr
}

// attempt performs a single HTTP exchange.
func (c *Client) attempt(ctx context.Context, cred models.Credential, method, pathWithQuery string, body []byte) (gjson.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+pathWithQuery, reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.SetBasicAuth(cred.Username, cred.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failure (timeout, connection reset): retryable.
		return gjson.Result{}, &models.UpstreamError{Status: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &models.UpstreamError{Status: 0, Detail: "failed to read upstream response: " + err.Error()}
	}

	parsed := gjson.ParseBytes(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, &models.UpstreamError{
			Status: resp.StatusCode,
			Detail: extractDetail(parsed, raw, resp),
			Body:   string(raw),
		}
	}

	// 2xx can still carry an upstream-side failure marker.
	if parsed.Get("error").Exists() || parsed.Get("status").String() == "failure" {
		return gjson.Result{}, &models.UpstreamError{
			Status: resp.StatusCode,
			Detail: extractDetail(parsed, raw, resp),
			Body:   string(raw),
		}
	}

	return parsed, nil
}

// retryable reports whether err is a transient upstream fault. A status
// of 0 marks a network-level failure.
func retryable(err error) bool {
	if ue, ok := err.(*models.UpstreamError); ok {
		return ue.Status == 0 || ue.Retryable()
	}
	return false
}

// extractDetail pulls the most specific error description available:
// nested detail, then message, then raw text, then the status line.
func extractDetail(parsed gjson.Result, raw []byte, resp *http.Response) string {
	if d := parsed.Get("error.detail"); d.Exists() && d.String() != "" {
		return d.String()
	}
	if m := parsed.Get("error.message"); m.Exists() && m.String() != "" {
		return m.String()
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return resp.Status
}

// tablePath builds a Table API path with query parameters.
func tablePath(table string, params url.Values) string {
	path := "/api/now/table/" + table
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return path
}

// TableQuery runs a list query against a table and returns the result rows.
func (c *Client) TableQuery(ctx context.Context, cred models.Credential, table string, params url.Values) ([]gjson.Result, error) {
	parsed, err := c.Do(ctx, cred, http.MethodGet, tablePath(table, params), nil)
	if err != nil {
		return nil, err
	}
	return parsed.Get("result").Array(), nil
}

// GetRecord fetches one record by identifier.
func (c *Client) GetRecord(ctx context.Context, cred models.Credential, table, sysID string, params url.Values) (gjson.Result, error) {
	parsed, err := c.Do(ctx, cred, http.MethodGet, tablePath(table+"/"+sysID, params), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	return parsed.Get("result"), nil
}

// PatchRecord applies a partial update to one record.
func (c *Client) PatchRecord(ctx context.Context, cred models.Credential, table, sysID string, body []byte, params url.Values) (gjson.Result, error) {
	parsed, err := c.Do(ctx, cred, http.MethodPatch, tablePath(table+"/"+sysID, params), body)
	if err != nil {
		return gjson.Result{}, err
	}
	return parsed.Get("result"), nil
}
