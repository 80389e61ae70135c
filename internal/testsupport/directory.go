package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"podvoice/internal/podcastindex"
	"podvoice/internal/services"
)

// FakeDirectory is an in-memory podcastindex.Directory.
type FakeDirectory struct {
	mu sync.Mutex

	Feeds         map[int64]podcastindex.Feed
	Episodes      map[int64][]podcastindex.Episode
	TrendingFeeds []podcastindex.Feed
	// EpisodeErrors fails EpisodesByFeedID for the listed feeds.
	EpisodeErrors map[int64]error

	Calls []string
}

var _ podcastindex.Directory = (*FakeDirectory)(nil)

// NewFakeDirectory returns an empty directory.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		Feeds:         map[int64]podcastindex.Feed{},
		Episodes:      map[int64][]podcastindex.Episode{},
		EpisodeErrors: map[int64]error{},
	}
}

// AddFeed registers a feed together with its episodes.
func (d *FakeDirectory) AddFeed(feed podcastindex.Feed, episodes ...podcastindex.Episode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Feeds[feed.ID] = feed
	d.Episodes[feed.ID] = episodes
}

func (d *FakeDirectory) record(call string) {
	d.Calls = append(d.Calls, call)
}

// SearchByTitle matches feeds whose title contains title, case-insensitively,
// in feed id order.
func (d *FakeDirectory) SearchByTitle(_ context.Context, title string) (*podcastindex.FeedsResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("search:" + title)
	if strings.TrimSpace(title) == "" {
		return nil, services.Wrap(services.ErrValidation, "fake", "search", "title must not be empty", nil)
	}
	var out []podcastindex.Feed
	for _, feed := range d.Feeds {
		if strings.Contains(strings.ToLower(feed.Title), strings.ToLower(title)) {
			out = append(out, feed)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return &podcastindex.FeedsResponse{Status: true, Feeds: out, Count: len(out)}, nil
}

// PodcastByFeedID returns a registered feed.
func (d *FakeDirectory) PodcastByFeedID(_ context.Context, feedID int64) (*podcastindex.Feed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("podcast:%d", feedID))
	feed, ok := d.Feeds[feedID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "podcast", fmt.Sprintf("feed %d not found", feedID), nil)
	}
	return &feed, nil
}

// EpisodesByFeedID returns up to max registered episodes.
func (d *FakeDirectory) EpisodesByFeedID(_ context.Context, feedID int64, max int) (*podcastindex.EpisodesResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("episodes:%d", feedID))
	if err := d.EpisodeErrors[feedID]; err != nil {
		return nil, err
	}
	items := d.Episodes[feedID]
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	return &podcastindex.EpisodesResponse{Status: true, Items: items, Count: len(items)}, nil
}

// Trending returns TrendingFeeds capped at opts.Max.
func (d *FakeDirectory) Trending(_ context.Context, opts podcastindex.TrendingOptions) (*podcastindex.FeedsResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("trending")
	feeds := d.TrendingFeeds
	if opts.Max > 0 && len(feeds) > opts.Max {
		feeds = feeds[:opts.Max]
	}
	return &podcastindex.FeedsResponse{Status: true, Feeds: feeds, Count: len(feeds)}, nil
}

// SampleFeed builds a valid feed for tests.
func SampleFeed(id int64, title string) podcastindex.Feed {
	return podcastindex.Feed{
		ID:          id,
		URL:         fmt.Sprintf("https://feeds.example.com/%d.xml", id),
		Title:       title,
		Description: "<p>All about " + title + "</p>",
		Author:      "Example Media",
		Image:       "https://img.example.com/show.jpg",
		Artwork:     "https://img.example.com/show.jpg",
		Language:    "en",
		Categories:  map[string]string{"9": "Business"},
	}
}

// SampleEpisode builds a valid episode for tests.
func SampleEpisode(feedID int64, guid string, published int64) podcastindex.Episode {
	return podcastindex.Episode{
		ID:            published,
		Title:         "Episode " + guid,
		Description:   "Notes for " + guid,
		GUID:          guid,
		DatePublished: published,
		EnclosureURL:  "https://cdn.example.com/" + guid + ".mp3",
		EnclosureType: "audio/mpeg",
		FeedID:        feedID,
		EpisodeType:   "full",
	}
}
