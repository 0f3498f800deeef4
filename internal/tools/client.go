package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the external Tools service (enrichment + search).
type Client struct {
	BaseURL    string
	APIKey     string
	TimeoutMs  int
	HTTPClient *http.Client
}

// New builds a Client from configuration. BaseURL empty means "not
// configured"; every call then fails fast with KindNotConfigured.
func New(baseURL, apiKey string, timeoutMs int) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		TimeoutMs:  timeoutMs,
		HTTPClient: &http.Client{},
	}
}

// Configured reports whether a base URL has been set.
func (c *Client) Configured() bool {
	return c != nil && c.BaseURL != ""
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/health", nil)
}

// Enrich calls POST /enrich {url, mode}.
func (c *Client) Enrich(ctx context.Context, url, mode string) (map[string]any, error) {
	data, err := c.do(ctx, http.MethodPost, "/enrich", map[string]any{"url": url, "mode": mode})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, newErr(KindEnrichEmpty, "enrich returned an empty payload")
	}
	return data, nil
}

// Search calls POST /search {query}.
func (c *Client) Search(ctx context.Context, query string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/search", map[string]any{"query": query})
}

func (c *Client) do(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	if !c.Configured() {
		return nil, newErr(KindNotConfigured, "tools client has no base URL configured")
	}

	timeout := c.TimeoutMs
	if timeout <= 0 {
		timeout = 6000
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, wrapErr(KindRequestFailed, "failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, wrapErr(KindRequestFailed, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapErr(KindTimeout, "tools request timed out", err)
		}
		return nil, wrapErr(KindRequestFailed, "tools request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr(KindRequestFailed, "failed reading tools response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var upstream struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &upstream); jsonErr == nil && upstream.Error != "" {
			return nil, newErr(httpKind(resp.StatusCode), upstream.Error)
		}
		return nil, newErr(httpKind(resp.StatusCode), fmt.Sprintf("tools service responded %d", resp.StatusCode))
	}

	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, wrapErr(KindRequestFailed, "failed decoding tools response", err)
	}
	return decoded, nil
}
