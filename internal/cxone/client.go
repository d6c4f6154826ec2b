// Package cxone is a thin authenticated HTTP adapter for the tenant API.
// It attaches the bearer header, decodes JSON, and hands the numeric
// status back to callers for status-specific handling.
package cxone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/cxops/internal/auth"
)

// Client issues authenticated calls against the resolved tenant base URL.
// It holds no mutable state after creation and is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client from an authenticated session context.
func New(actx *auth.Context, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(actx.BaseURL, "/"),
		token:      actx.Token,
		httpClient: httpClient,
		logger:     slog.Default(),
	}
}

// BaseURL returns the resolved tenant API base.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, rawURL string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", method, "url", rawURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s %s: %w", method, rawURL, err)
	}
	c.logger.Debug("api response", "method", method, "url", rawURL, "status", resp.StatusCode)
	return resp, nil
}

// decodeInto drains and closes the body, decoding JSON into out when out
// is non-nil and the body is non-empty.
func decodeInto(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// GetJSON issues GET {base}{path} and decodes the body into out.
// The HTTP status is always returned, including for 2xx responses.
func (c *Client) GetJSON(ctx context.Context, path string, out any) (int, error) {
	return c.GetURLJSON(ctx, c.baseURL+path, out)
}

// GetURLJSON is GetJSON against an absolute URL, used for result-file
// locations handed back by the API.
func (c *Client) GetURLJSON(ctx context.Context, rawURL string, out any) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	if !Success(resp.StatusCode) {
		resp.Body.Close()
		return resp.StatusCode, nil
	}
	if err := decodeInto(resp, out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// PostJSON issues POST {base}{path}?{query} with a JSON body and decodes
// the response into out when the call succeeds.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body, out any) (int, error) {
	rawURL := c.baseURL + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	resp, err := c.do(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return 0, err
	}
	if !Success(resp.StatusCode) {
		resp.Body.Close()
		return resp.StatusCode, nil
	}
	if err := decodeInto(resp, out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// Delete issues DELETE {base}{path}?{query} and returns the status code.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (int, error) {
	rawURL := c.baseURL + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	resp, err := c.do(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// GetRaw issues GET against an absolute URL without the bearer header and
// returns the raw bytes; used for media file downloads whose URLs are
// pre-signed by the API.
func (c *Client) GetRaw(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	c.logger.Debug("raw request", "url", rawURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	return data, resp.StatusCode, nil
}

// Success reports whether status is in the 2xx range.
func Success(status int) bool {
	return status >= 200 && status < 300
}
