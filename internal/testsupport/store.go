package testsupport

import (
	"context"
	"testing"

	"podvoice/internal/catalog"
	"podvoice/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedPodcast inserts a podcast row and returns the stored copy.
func SeedPodcast(t testing.TB, store *catalog.Store, podcast catalog.Podcast) *catalog.Podcast {
	t.Helper()

	saved, err := store.UpsertPodcast(context.Background(), podcast)
	if err != nil {
		t.Fatalf("store.UpsertPodcast: %v", err)
	}
	return saved
}
