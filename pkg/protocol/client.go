package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the rrserverd admin API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the daemon at baseURL, e.g.
// "http://127.0.0.1:8080". A nil httpClient gets a 10s timeout client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// CreateServer creates a server port. Failures reported by the daemon are
// returned as Error.
func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (ServerInfo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("encode request: %w", err)
	}
	var info ServerInfo
	err = c.do(ctx, http.MethodPost, "/v1/servers", bytes.NewReader(body), http.StatusCreated, &info)
	return info, err
}

// ListServers returns the live server ports in creation order.
func (c *Client) ListServers(ctx context.Context) (ServerList, error) {
	var list ServerList
	err := c.do(ctx, http.MethodGet, "/v1/servers", nil, http.StatusOK, &list)
	return list, err
}

// GetServer describes one server port.
func (c *Client) GetServer(ctx context.Context, id string) (ServerInfo, error) {
	var info ServerInfo
	err := c.do(ctx, http.MethodGet, "/v1/servers/"+url.PathEscape(id), nil, http.StatusOK, &info)
	return info, err
}

// DropServer releases a server port.
func (c *Client) DropServer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/servers/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var apiErr Error
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
