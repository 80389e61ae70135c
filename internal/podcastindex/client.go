package podcastindex

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"podvoice/internal/config"
	"podvoice/internal/logging"
	"podvoice/internal/services"
)

const component = "podcastindex"

// Directory is the directory surface the rest of the application uses.
type Directory interface {
	SearchByTitle(ctx context.Context, title string) (*FeedsResponse, error)
	PodcastByFeedID(ctx context.Context, feedID int64) (*Feed, error)
	EpisodesByFeedID(ctx context.Context, feedID int64, max int) (*EpisodesResponse, error)
	Trending(ctx context.Context, opts TrendingOptions) (*FeedsResponse, error)
}

// Client talks to the Podcast Index REST API.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

var _ Directory = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the clock used for the X-Auth-Date header.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = strings.TrimSpace(ua)
		}
	}
}

// WithLogger attaches a logger for request timing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a directory client.
func New(apiKey, apiSecret, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "api key and secret required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "base url required", nil)
	}
	client := &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "podvoice/1.0",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, component)
	return client, nil
}

// NewFromConfig builds a client from the [podcast_index] section.
func NewFromConfig(cfg config.PodcastIndex, opts ...Option) (*Client, error) {
	base := []Option{WithUserAgent(cfg.UserAgent)}
	if cfg.TimeoutSeconds > 0 {
		base = append(base, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}))
	}
	return New(cfg.APIKey, cfg.APISecret, cfg.BaseURL, append(base, opts...)...)
}

// AuthHeaders returns the signed headers for a request made at ts.
func (c *Client) AuthHeaders(ts time.Time) http.Header {
	date := strconv.FormatInt(ts.Unix(), 10)
	sum := sha1.Sum([]byte(c.apiKey + c.apiSecret + date))
	h := http.Header{}
	h.Set("User-Agent", c.userAgent)
	h.Set("X-Auth-Date", date)
	h.Set("X-Auth-Key", c.apiKey)
	h.Set("Authorization", hex.EncodeToString(sum[:]))
	return h
}

// SearchByTitle searches feeds whose title matches.
func (c *Client) SearchByTitle(ctx context.Context, title string) (*FeedsResponse, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "title must not be empty", nil)
	}
	params := url.Values{}
	params.Set("q", title)
	var payload FeedsResponse
	if err := c.get(ctx, "search", "/search/bytitle", params, &payload); err != nil {
		return nil, err
	}
	if err := payload.validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "search", "invalid response", err)
	}
	return &payload, nil
}

// PodcastByFeedID fetches one feed. A missing feed is services.ErrNotFound.
func (c *Client) PodcastByFeedID(ctx context.Context, feedID int64) (*Feed, error) {
	if feedID <= 0 {
		return nil, services.Wrap(services.ErrValidation, component, "podcast", "feed id must be positive", nil)
	}
	params := url.Values{}
	params.Set("id", strconv.FormatInt(feedID, 10))
	var payload feedResponse
	if err := c.get(ctx, "podcast", "/podcasts/byfeedid", params, &payload); err != nil {
		return nil, err
	}
	if !payload.Status {
		return nil, services.Wrap(services.ErrValidation, component, "podcast", "status is not true", nil)
	}
	// Unknown ids come back as an empty array or object.
	raw := bytes.TrimSpace(payload.Feed)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, services.Wrap(services.ErrNotFound, component, "podcast", fmt.Sprintf("feed %d not found", feedID), nil)
	}
	var feed Feed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "podcast", "decode feed", err)
	}
	if feed.ID == 0 {
		return nil, services.Wrap(services.ErrNotFound, component, "podcast", fmt.Sprintf("feed %d not found", feedID), nil)
	}
	if err := validateFeed(-1, feed); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "podcast", "invalid response", err)
	}
	return &feed, nil
}

// EpisodesByFeedID lists the newest max episodes of a feed.
func (c *Client) EpisodesByFeedID(ctx context.Context, feedID int64, max int) (*EpisodesResponse, error) {
	if feedID <= 0 {
		return nil, services.Wrap(services.ErrValidation, component, "episodes", "feed id must be positive", nil)
	}
	params := url.Values{}
	params.Set("id", strconv.FormatInt(feedID, 10))
	if max > 0 {
		params.Set("max", strconv.Itoa(max))
	}
	var payload EpisodesResponse
	if err := c.get(ctx, "episodes", "/episodes/byfeedid", params, &payload); err != nil {
		return nil, err
	}
	if err := payload.validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "episodes", "invalid response", err)
	}
	return &payload, nil
}

// Trending lists currently trending feeds.
func (c *Client) Trending(ctx context.Context, opts TrendingOptions) (*FeedsResponse, error) {
	params := url.Values{}
	if opts.Max > 0 {
		params.Set("max", strconv.Itoa(opts.Max))
	}
	if lang := strings.TrimSpace(opts.Lang); lang != "" {
		params.Set("lang", lang)
	}
	if len(opts.Categories) > 0 {
		params.Set("cat", strings.Join(opts.Categories, ","))
	}
	var payload FeedsResponse
	if err := c.get(ctx, "trending", "/podcasts/trending", params, &payload); err != nil {
		return nil, err
	}
	if err := payload.validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "trending", "invalid response", err)
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, op, "parse url", err)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, component, op, "build request", err)
	}
	for key, values := range c.AuthHeaders(c.now()) {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return services.Wrap(services.ErrUpstream, component, op, fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("directory request",
		logging.String("operation", op),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency)
		if text := strings.TrimSpace(string(body)); text != "" {
			msg += ": " + text
		}
		return services.Wrap(services.ErrUpstream, component, op, msg, nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrValidation, component, op, "decode response", err)
	}
	return nil
}
