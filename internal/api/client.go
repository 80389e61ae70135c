package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client reads status and logs from a running server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient targets the server at bind, which may be a host:port or a URL.
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 65 * time.Second},
	}
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.get(ctx, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LogQuery selects log events.
type LogQuery struct {
	Since  uint64
	Limit  int
	Follow bool
	Tail   bool
}

// Logs fetches one page of /api/logs.
func (c *Client) Logs(ctx context.Context, q LogQuery) (*LogStreamResponse, error) {
	params := url.Values{}
	if q.Since > 0 {
		params.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		params.Set("follow", "1")
	}
	if q.Tail {
		params.Set("tail", "1")
	}
	var out LogStreamResponse
	if err := c.get(ctx, "/api/logs", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s (status %d)", path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
