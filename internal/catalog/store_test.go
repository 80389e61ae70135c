package catalog_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"podvoice/internal/catalog"
	"podvoice/internal/services"
	"podvoice/internal/testsupport"
)

func ptr[T any](v T) *T { return &v }

func samplePodcast(feedID, title string) catalog.Podcast {
	return catalog.Podcast{
		FeedID:      feedID,
		Title:       title,
		URL:         "https://feeds.example.com/" + feedID + ".xml",
		Author:      "Example Media",
		Description: "A show about " + title,
		Categories:  map[string]string{"9": "Business"},
	}
}

func sampleEpisode(guid, published string) catalog.Episode {
	return catalog.Episode{
		EpisodeGUID:   guid,
		Title:         "Episode " + guid,
		DatePublished: published,
		EnclosureURL:  "https://cdn.example.com/" + guid + ".mp3",
		EnclosureType: "audio/mpeg",
		Duration:      ptr(int64(1800)),
		EpisodeType:   ptr("full"),
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	if store.Dialect() != catalog.DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %s", store.Dialect())
	}
	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version < 1 {
		t.Fatalf("expected schema version >= 1, got %d", version)
	}
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.Driver = "oracle"
	_, err := catalog.Open(context.Background(), cfg)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUpsertPodcastRefreshesOnFeedID(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.SeedPodcast(t, store, samplePodcast("920666", "Crime Junkie"))
	if first.ID == 0 || first.CreatedAt == "" {
		t.Fatalf("expected id and created_at, got %+v", first)
	}

	updated := samplePodcast("920666", "Crime Junkie Renamed")
	updated.Type = ptr(int64(1))
	second, err := store.UpsertPodcast(ctx, updated)
	if err != nil {
		t.Fatalf("UpsertPodcast: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row id %d, got %d", first.ID, second.ID)
	}
	if second.Title != "Crime Junkie Renamed" || second.Type == nil || *second.Type != 1 {
		t.Fatalf("expected refreshed row, got %+v", second)
	}
	if second.Categories["9"] != "Business" {
		t.Fatalf("expected categories round trip, got %v", second.Categories)
	}

	count, err := store.CountPodcasts(ctx)
	if err != nil {
		t.Fatalf("CountPodcasts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 podcast, got %d", count)
	}
}

func TestUpsertPodcastValidates(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []catalog.Podcast{
		{Title: "missing feed", URL: "https://example.com/a.xml"},
		{FeedID: "1", Title: "missing url"},
		{FeedID: "2", URL: "https://example.com/b.xml", Type: ptr(int64(7))},
	}
	for _, p := range cases {
		if _, err := store.UpsertPodcast(ctx, p); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", p, err)
		}
	}
}

func TestUpsertPodcastsIsAtomic(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	_, err := store.UpsertPodcasts(ctx, []catalog.Podcast{
		samplePodcast("1", "One"),
		{FeedID: "2", Title: "broken"},
	})
	if err == nil {
		t.Fatal("expected batch to fail")
	}
	count, _ := store.CountPodcasts(ctx)
	if count != 0 {
		t.Fatalf("expected rollback, found %d podcasts", count)
	}

	saved, err := store.UpsertPodcasts(ctx, []catalog.Podcast{samplePodcast("1", "One"), samplePodcast("2", "Two")})
	if err != nil {
		t.Fatalf("UpsertPodcasts: %v", err)
	}
	if len(saved) != 2 || saved[0].FeedID != "1" || saved[1].FeedID != "2" {
		t.Fatalf("expected rows in input order, got %+v", saved)
	}
}

func TestInsertPodcastIfAbsent(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	created, ok, err := store.InsertPodcastIfAbsent(ctx, samplePodcast("55", "First"))
	if err != nil || !ok {
		t.Fatalf("expected insert, got ok=%v err=%v", ok, err)
	}
	again, ok, err := store.InsertPodcastIfAbsent(ctx, samplePodcast("55", "Second"))
	if err != nil {
		t.Fatalf("InsertPodcastIfAbsent: %v", err)
	}
	if ok {
		t.Fatal("expected existing row to be kept")
	}
	if again.ID != created.ID || again.Title != "First" {
		t.Fatalf("expected original row, got %+v", again)
	}
}

func TestGetPodcastNotFound(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	if _, err := store.GetPodcast(context.Background(), 404); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetPodcastByFeedID(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEpisodesUpsertListAndDetail(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	podcast := testsupport.SeedPodcast(t, store, samplePodcast("77", "Daily"))

	saved, err := store.UpsertEpisodes(ctx, podcast.ID, []catalog.Episode{
		sampleEpisode("a", "2024-01-01T00:00:00.000Z"),
		sampleEpisode("c", "2024-03-01T00:00:00.000Z"),
		sampleEpisode("b", "2024-02-01T00:00:00.000Z"),
	})
	if err != nil {
		t.Fatalf("UpsertEpisodes: %v", err)
	}
	if len(saved) != 3 || saved[0].EpisodeGUID != "c" || saved[2].EpisodeGUID != "a" {
		t.Fatalf("expected newest first, got %+v", saved)
	}

	retitled := sampleEpisode("a", "2024-01-01T00:00:00.000Z")
	retitled.Title = "Pilot"
	again, err := store.UpsertEpisodes(ctx, podcast.ID, []catalog.Episode{retitled})
	if err != nil {
		t.Fatalf("UpsertEpisodes: %v", err)
	}
	if again[0].ID != saved[2].ID || again[0].Title != "Pilot" {
		t.Fatalf("expected refresh of existing guid, got %+v", again[0])
	}

	listed, err := store.ListEpisodes(ctx, podcast.ID, 2)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(listed) != 2 || listed[0].EpisodeGUID != "c" || listed[1].EpisodeGUID != "b" {
		t.Fatalf("unexpected listing %+v", listed)
	}

	detail, err := store.GetEpisode(ctx, saved[0].ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if detail.Podcast.ID != podcast.ID || detail.Podcast.Title != "Daily" {
		t.Fatalf("expected podcast summary, got %+v", detail.Podcast)
	}
	if detail.Duration == nil || *detail.Duration != 1800 {
		t.Fatalf("expected duration, got %v", detail.Duration)
	}
}

func TestUpsertEpisodesValidates(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	podcast := testsupport.SeedPodcast(t, store, samplePodcast("78", "Weekly"))

	bad := sampleEpisode("x", "2024-01-01T00:00:00.000Z")
	bad.EpisodeType = ptr("teaser")
	if _, err := store.UpsertEpisodes(ctx, podcast.ID, []catalog.Episode{bad}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := store.UpsertEpisodes(ctx, 0, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing podcast id, got %v", err)
	}
	if _, err := store.GetEpisode(ctx, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReplaceTrending(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	a := testsupport.SeedPodcast(t, store, samplePodcast("1", "Alpha"))
	b := testsupport.SeedPodcast(t, store, samplePodcast("2", "Beta"))

	n, err := store.ReplaceTrending(ctx, []catalog.TrendingEntry{
		{PodcastID: a.ID, TrendScore: 3},
		{PodcastID: b.ID, TrendScore: 9},
		{PodcastID: a.ID, TrendScore: 1},
	})
	if err != nil {
		t.Fatalf("ReplaceTrending: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected duplicates dropped, inserted %d", n)
	}
	list, err := store.ListTrending(ctx)
	if err != nil {
		t.Fatalf("ListTrending: %v", err)
	}
	if len(list) != 2 || list[0].Podcast.Title != "Beta" || list[1].TrendScore != 3 {
		t.Fatalf("unexpected trending list %+v", list)
	}

	if _, err := store.ReplaceTrending(ctx, []catalog.TrendingEntry{{PodcastID: a.ID, TrendScore: 5}}); err != nil {
		t.Fatalf("ReplaceTrending: %v", err)
	}
	list, _ = store.ListTrending(ctx)
	if len(list) != 1 || list[0].PodcastID != a.ID {
		t.Fatalf("expected list to be replaced, got %+v", list)
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("PODVOICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PODVOICE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := catalog.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer store.Close()

	saved, err := store.UpsertPodcast(ctx, samplePodcast("pg-1", "Postgres Show"))
	if err != nil {
		t.Fatalf("UpsertPodcast: %v", err)
	}
	got, err := store.GetPodcastByFeedID(ctx, "pg-1")
	if err != nil {
		t.Fatalf("GetPodcastByFeedID: %v", err)
	}
	if got.ID != saved.ID {
		t.Fatalf("expected id %d, got %d", saved.ID, got.ID)
	}
}
