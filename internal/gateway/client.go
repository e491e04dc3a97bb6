// Package gateway is the client for the hosted data service: an identity API
// under /auth/v1 and a row API under /rest/v1 that follows PostgREST
// conventions.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Options configures a Client.
type Options struct {
	// URL is the service base URL, e.g. https://xyz.supabase.co.
	URL string
	// AnonKey is the public project key sent as the apikey header.
	AnonKey string
	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Client calls the identity and row APIs.
type Client struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// New creates a client for the given service.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if baseURL != "" && !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{baseURL: baseURL, anonKey: opts.AnonKey, client: httpClient}
}

// BaseURL returns the normalized service URL.
func (c *Client) BaseURL() string { return c.baseURL }

type request struct {
	method string
	path   string
	token  string
	body   any
	header http.Header
}

func (c *Client) do(ctx context.Context, r request, dest any) error {
	if c.baseURL == "" {
		return fmt.Errorf("gateway url is not configured")
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return err
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	token := r.token
	if token == "" {
		token = c.anonKey
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readErrorResponse(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
