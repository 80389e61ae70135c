package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"podvoice/internal/api"
	"podvoice/internal/catalog"
	"podvoice/internal/library"
	"podvoice/internal/podcastindex"
	"podvoice/internal/testsupport"
	"podvoice/internal/web"
)

type testEnv struct {
	dir    *testsupport.FakeDirectory
	store  *catalog.Store
	server *web.Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, opts ...testsupport.ConfigOption) *testEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenCatalog(t, cfg)
	dir := testsupport.NewFakeDirectory()
	srv, err := web.New(cfg, dir, store, web.WithVersion("test"))
	if err != nil {
		t.Fatalf("web.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{dir: dir, store: store, server: srv, http: ts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func TestDirectorySearchProxy(t *testing.T) {
	env := newTestEnv(t)
	env.dir.AddFeed(testsupport.SampleFeed(7, "Hardcore History"))

	resp := env.do(t, http.MethodGet, "/api/podcast-index/search-by-title", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[api.ErrorResponse](t, resp); body.Error == "" {
		t.Fatal("expected error message")
	}

	resp = env.do(t, http.MethodGet, "/api/podcast-index/search-by-title?title=nothing", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = env.do(t, http.MethodGet, "/api/podcast-index/search-by-title?title=hardcore", nil)
	expectStatus(t, resp, http.StatusOK)
	found := decode[podcastindex.FeedsResponse](t, resp)
	if len(found.Feeds) != 1 || found.Feeds[0].ID != 7 {
		t.Fatalf("unexpected feeds %+v", found.Feeds)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestDirectoryFeedAndEpisodes(t *testing.T) {
	env := newTestEnv(t)
	env.dir.AddFeed(testsupport.SampleFeed(7, "Hardcore History"),
		testsupport.SampleEpisode(7, "e1", 1700000000),
	)

	expectStatus(t, env.do(t, http.MethodGet, "/api/podcast-index/by-feed-id", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/podcast-index/by-feed-id?feedId=abc", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/podcast-index/by-feed-id?feedId=99", nil), http.StatusNotFound)

	resp := env.do(t, http.MethodGet, "/api/podcast-index/by-feed-id?feedId=7", nil)
	expectStatus(t, resp, http.StatusOK)
	if feed := decode[podcastindex.Feed](t, resp); feed.Title != "Hardcore History" {
		t.Fatalf("unexpected feed %+v", feed)
	}

	resp = env.do(t, http.MethodGet, "/api/podcast-index/episodes?feedId=7", nil)
	expectStatus(t, resp, http.StatusOK)
	if episodes := decode[podcastindex.EpisodesResponse](t, resp); len(episodes.Items) != 1 {
		t.Fatalf("unexpected episodes %+v", episodes)
	}
}

func TestCatalogWritesAndReads(t *testing.T) {
	env := newTestEnv(t)
	feed := testsupport.SampleFeed(42, "Serial")
	feed.Description = `<p>Investigative <script>alert(1)</script>journalism</p>`

	resp := env.do(t, http.MethodPost, "/api/catalog/podcasts", api.AddPodcastRequest{Podcast: &feed})
	expectStatus(t, resp, http.StatusCreated)
	added := decode[api.AddPodcastResponse](t, resp)
	if added.Source != "api" || added.Podcast == nil || added.Podcast.FeedID != "42" {
		t.Fatalf("unexpected add response %+v", added)
	}
	if strings.Contains(added.Podcast.Description, "script") {
		t.Fatalf("description not sanitized: %q", added.Podcast.Description)
	}

	episodes := api.AddEpisodesRequest{
		PodcastID: added.Podcast.ID,
		Episodes: []podcastindex.Episode{
			testsupport.SampleEpisode(42, "old", 1700000000),
			testsupport.SampleEpisode(42, "new", 1710000000),
		},
	}
	resp = env.do(t, http.MethodPost, "/api/catalog/episodes", episodes)
	expectStatus(t, resp, http.StatusOK)
	saved := decode[[]catalog.Episode](t, resp)
	if len(saved) != 2 || saved[0].EpisodeGUID != "new" {
		t.Fatalf("expected newest first, got %+v", saved)
	}

	resp = env.do(t, http.MethodGet, "/api/catalog/episodes?podcast_id="+itoa(added.Podcast.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	if listed := decode[[]catalog.Episode](t, resp); len(listed) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(listed))
	}

	resp = env.do(t, http.MethodGet, "/api/catalog/episodes/"+itoa(saved[0].ID), nil)
	expectStatus(t, resp, http.StatusOK)
	detail := decode[catalog.EpisodeDetail](t, resp)
	if detail.Podcast.Title != "Serial" {
		t.Fatalf("expected podcast summary, got %+v", detail.Podcast)
	}

	resp = env.do(t, http.MethodGet, "/api/catalog/podcasts/"+itoa(added.Podcast.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/podcasts/999", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/podcasts/abc", nil), http.StatusBadRequest)

	trending := api.AddTrendingRequest{TrendingPodcasts: make([]api.TrendingItem, 1)}
	trending.TrendingPodcasts[0].Podcast.ID = added.Podcast.ID
	trending.TrendingPodcasts[0].TrendScore = 9
	expectStatus(t, env.do(t, http.MethodPost, "/api/catalog/trending", trending), http.StatusOK)

	resp = env.do(t, http.MethodGet, "/api/catalog/trending", nil)
	expectStatus(t, resp, http.StatusOK)
	rows := decode[[]catalog.TrendingPodcast](t, resp)
	if len(rows) != 1 || rows[0].Podcast.Title != "Serial" || rows[0].TrendScore != 9 {
		t.Fatalf("unexpected trending rows %+v", rows)
	}

	resp = env.do(t, http.MethodGet, "/api/catalog/search?q=serial", nil)
	expectStatus(t, resp, http.StatusOK)
	if results := decode[[]catalog.SearchResult](t, resp); len(results) != 1 || results[0].Title != "Serial" {
		t.Fatalf("unexpected search results %+v", results)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/search", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/search?q=x&min_similarity=2", nil), http.StatusBadRequest)
}

func TestCatalogWriteValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/catalog/podcasts", map[string]any{})
	expectStatus(t, resp, http.StatusBadRequest)

	bad := testsupport.SampleFeed(1, "Bad")
	bad.URL = "not a url"
	expectStatus(t, env.do(t, http.MethodPost, "/api/catalog/podcasts", api.AddPodcastRequest{Podcast: &bad}), http.StatusBadRequest)

	expectStatus(t, env.do(t, http.MethodPost, "/api/catalog/episodes", api.AddEpisodesRequest{}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/catalog/episodes", api.AddEpisodesRequest{
		PodcastID: 77,
		Episodes:  []podcastindex.Episode{testsupport.SampleEpisode(1, "a", 1)},
	}), http.StatusNotFound)

	req, _ := http.NewRequest(http.MethodPost, env.http.URL+"/api/catalog/podcasts", strings.NewReader("{"))
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer raw.Body.Close()
	expectStatus(t, raw, http.StatusBadRequest)
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, testsupport.WithAPIToken("s3cret"))
	feed := testsupport.SampleFeed(5, "Radiolab")

	resp := env.do(t, http.MethodPost, "/api/catalog/podcasts", api.AddPodcastRequest{Podcast: &feed})
	expectStatus(t, resp, http.StatusUnauthorized)
	if body := decode[api.ErrorResponse](t, resp); body.Error != "unauthorized" {
		t.Fatalf("unexpected body %+v", body)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/api/catalog/podcasts", api.AddPodcastRequest{Podcast: &feed},
		"Authorization", "Bearer wrong"), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodPost, "/api/catalog/podcasts", api.AddPodcastRequest{Podcast: &feed},
		"Authorization", "Bearer s3cret"), http.StatusCreated)

	// Reads stay open.
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/trending", nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/fetch-podcast?title=radiolab", nil), http.StatusUnauthorized)
}

func TestRateLimitHeadersAndOverflow(t *testing.T) {
	env := newTestEnv(t, testsupport.WithRateLimit(2, 60))

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodGet, "/api/catalog/trending", nil)
		expectStatus(t, resp, http.StatusOK)
		if resp.Header.Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("unexpected limit header %q", resp.Header.Get("X-RateLimit-Limit"))
		}
		if want := itoa(int64(1 - i)); resp.Header.Get("X-RateLimit-Remaining") != want {
			t.Fatalf("request %d: remaining %q, want %s", i, resp.Header.Get("X-RateLimit-Remaining"), want)
		}
	}
	resp := env.do(t, http.MethodGet, "/api/catalog/trending", nil)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("X-RateLimit-Reset") == "" || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing reset headers: %v", resp.Header)
	}

	// Pages are not limited.
	expectStatus(t, env.do(t, http.MethodGet, "/help", nil), http.StatusOK)
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	env := newTestEnv(t, testsupport.WithRateLimit(1, 60))

	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/trending", nil, "X-Forwarded-For", "203.0.113.1"), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/trending", nil, "X-Forwarded-For", "203.0.113.2"), http.StatusTooManyRequests)
}

func TestRateLimitTrustedProxyKeysByForwardedFor(t *testing.T) {
	env := newTestEnv(t, testsupport.WithRateLimit(1, 60), testsupport.WithTrustedProxy())

	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/trending", nil, "X-Forwarded-For", "203.0.113.1"), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/trending", nil, "X-Forwarded-For", "203.0.113.2, 10.0.0.1"), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog/trending", nil, "X-Forwarded-For", "203.0.113.1"), http.StatusTooManyRequests)
}

func TestFetchPodcastAndRefreshTrending(t *testing.T) {
	env := newTestEnv(t)
	env.dir.AddFeed(testsupport.SampleFeed(10, "The Daily"),
		testsupport.SampleEpisode(10, "d1", 1700000000),
	)
	env.dir.AddFeed(testsupport.SampleFeed(11, "Planet Money"),
		testsupport.SampleEpisode(11, "p1", 1700000000),
	)
	env.dir.TrendingFeeds = []podcastindex.Feed{env.dir.Feeds[11], env.dir.Feeds[10]}

	expectStatus(t, env.do(t, http.MethodGet, "/api/fetch-podcast", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/fetch-podcast?title=missing", nil), http.StatusNotFound)

	resp := env.do(t, http.MethodGet, "/api/fetch-podcast?title=daily", nil)
	expectStatus(t, resp, http.StatusOK)
	fetched := decode[library.FetchResult](t, resp)
	if fetched.Source != library.SourceAPI || fetched.EpisodeCount != 1 {
		t.Fatalf("unexpected fetch result %+v", fetched)
	}

	resp = env.do(t, http.MethodPost, "/api/trending-podcasts/refresh", nil)
	expectStatus(t, resp, http.StatusOK)
	refreshed := decode[library.RefreshResult](t, resp)
	if refreshed.Trending != 2 || len(refreshed.Podcasts) != 2 {
		t.Fatalf("unexpected refresh result %+v", refreshed)
	}
	rows, err := env.store.ListTrending(context.Background())
	if err != nil {
		t.Fatalf("ListTrending: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 trending rows, got %d", len(rows))
	}
}

func TestStatusAndLogs(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/status", nil)
	expectStatus(t, resp, http.StatusOK)
	status := decode[api.Status](t, resp)
	if status.Version != "test" || status.Dialect != "sqlite" || status.SchemaVersion == 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	resp = env.do(t, http.MethodGet, "/api/logs?tail=1", nil)
	expectStatus(t, resp, http.StatusOK)
	if logs := decode[api.LogStreamResponse](t, resp); len(logs.Events) != 0 {
		t.Fatalf("expected no events without a hub, got %d", len(logs.Events))
	}
}

func TestStartServesAndStops(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	srv, err := web.New(cfg, testsupport.NewFakeDirectory(), store)
	if err != nil {
		t.Fatalf("web.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	client := api.NewClient(srv.Addr(), "")
	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	status, err := client.Status(reqCtx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Version != "dev" {
		t.Fatalf("unexpected version %q", status.Version)
	}
	srv.Stop()
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
