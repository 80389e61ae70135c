package catalog_test

import (
	"context"
	"errors"
	"testing"

	"podvoice/internal/catalog"
	"podvoice/internal/services"
	"podvoice/internal/testsupport"
)

func TestSearchRanksTitleAuthorAndDescription(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	crime := samplePodcast("1", "Crime Junkie")
	crime.Author = "audiochuck"
	crime.Description = "<p>True crime stories told weekly.</p>"
	history := samplePodcast("2", "Hardcore History")
	history.Author = "Dan Carlin"
	history.Description = "Long form history of ancient empires."
	cooking := samplePodcast("3", "Kitchen Table")
	cooking.Author = "Chef Ana"
	cooking.Description = "Recipes and cooking with friends."
	for _, p := range []catalog.Podcast{crime, history, cooking} {
		testsupport.SeedPodcast(t, store, p)
	}

	results, err := store.Search(ctx, "crime junkie", 0, -1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].Title != "Crime Junkie" {
		t.Fatalf("expected title match first, got %+v", results)
	}
	if results[0].Rank < 0.99 {
		t.Fatalf("expected exact title rank near 1, got %v", results[0].Rank)
	}

	results, err = store.Search(ctx, "Dan Carlin", 10, 0.3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Hardcore History" {
		t.Fatalf("expected author match, got %+v", results)
	}

	results, err = store.Search(ctx, "recipes", 10, 0.1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].Title != "Kitchen Table" {
		t.Fatalf("expected description match, got %+v", results)
	}
}

func TestSearchLimitAndEmptyQuery(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		testsupport.SeedPodcast(t, store, samplePodcast(id, "Morning News "+id))
	}

	results, err := store.Search(ctx, "morning news", 2, 0.1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(results))
	}
	if results[0].Rank < results[1].Rank {
		t.Fatalf("expected descending rank, got %+v", results)
	}

	if _, err := store.Search(ctx, "  ", 10, 0.3); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
