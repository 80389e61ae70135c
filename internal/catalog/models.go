package catalog

import "time"

// Podcast is a stored podcast row. Nullable columns are pointers.
type Podcast struct {
	ID                     int64             `json:"id"`
	CreatedAt              string            `json:"created_at"`
	FeedID                 string            `json:"feed_id"`
	PodcastGUID            *string           `json:"podcast_guid"`
	Title                  string            `json:"title"`
	Description            string            `json:"description"`
	Link                   *string           `json:"link"`
	Image                  string            `json:"image"`
	Author                 string            `json:"author"`
	Language               string            `json:"language"`
	Explicit               bool              `json:"explicit"`
	Categories             map[string]string `json:"categories"`
	URL                    string            `json:"url"`
	OriginalURL            *string           `json:"original_url"`
	OwnerName              *string           `json:"owner_name"`
	Artwork                string            `json:"artwork"`
	LastUpdateTime         *string           `json:"last_update_time"`
	LastCrawlTime          *string           `json:"last_crawl_time"`
	LastParseTime          *string           `json:"last_parse_time"`
	LastGoodHTTPStatusTime *string           `json:"last_good_http_status_time"`
	LastHTTPStatus         *int64            `json:"last_http_status"`
	ContentType            *string           `json:"content_type"`
	ItunesID               *int64            `json:"itunes_id"`
	Generator              *string           `json:"generator"`
	Type                   *int64            `json:"type"`
	Medium                 *string           `json:"medium"`
	Dead                   bool              `json:"dead"`
	EpisodeCount           int64             `json:"episode_count"`
	CrawlErrors            int64             `json:"crawl_errors"`
	ParseErrors            int64             `json:"parse_errors"`
	Locked                 bool              `json:"locked"`
	ImageURLHash           *string           `json:"image_url_hash"`
	NewestItemPubdate      *string           `json:"newest_item_pubdate"`
}

// Episode is a stored episode row.
type Episode struct {
	ID              int64   `json:"id"`
	CreatedAt       string  `json:"created_at"`
	EpisodeGUID     string  `json:"episode_guid"`
	PodcastID       int64   `json:"podcast_id"`
	FeedID          *int64  `json:"feed_id"`
	Title           string  `json:"title"`
	Link            *string `json:"link"`
	Description     string  `json:"description"`
	DatePublished   string  `json:"date_published"`
	DateCrawled     *string `json:"date_crawled"`
	EnclosureURL    string  `json:"enclosure_url"`
	EnclosureType   string  `json:"enclosure_type"`
	EnclosureLength *int64  `json:"enclosure_length"`
	Duration        *int64  `json:"duration"`
	Explicit        bool    `json:"explicit"`
	EpisodeType     *string `json:"episode_type"`
	EpisodeNumber   *int64  `json:"episode_number"`
	Season          *int64  `json:"season"`
	Image           *string `json:"image"`
	ChaptersURL     *string `json:"chapters_url"`
	TranscriptURL   *string `json:"transcript_url"`
}

// PodcastSummary is the slice of a podcast shown next to an episode.
type PodcastSummary struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Artwork     string `json:"artwork"`
}

// EpisodeDetail is an episode with its podcast summary.
type EpisodeDetail struct {
	Episode
	Podcast PodcastSummary `json:"podcast"`
}

// TrendingEntry is one row to store in the trending list.
type TrendingEntry struct {
	PodcastID  int64   `json:"podcast_id"`
	TrendScore float64 `json:"trend_score"`
}

// TrendingPodcast is a trending row joined with its podcast.
type TrendingPodcast struct {
	ID         int64   `json:"id"`
	PodcastID  int64   `json:"podcast_id"`
	TrendScore float64 `json:"trend_score"`
	TrendingAt string  `json:"trending_at"`
	Podcast    Podcast `json:"podcast"`
}

// SearchResult is a ranked podcast match.
type SearchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Description string  `json:"description"`
	Rank        float64 `json:"rank"`
}

const isoLayout = "2006-01-02T15:04:05.000Z"

// isoTime formats t the way stored timestamps are compared and sorted.
func isoTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// unixToISO converts a directory unix timestamp; zero means absent.
func unixToISO(ts int64) *string {
	if ts <= 0 {
		return nil
	}
	v := isoTime(time.Unix(ts, 0))
	return &v
}

// ParseTime parses a stored timestamp.
func ParseTime(value string) (time.Time, error) {
	if t, err := time.Parse(isoLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
