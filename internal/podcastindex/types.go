package podcastindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Flag decodes the directory's 0/1 integers and booleans alike.
type Flag bool

// UnmarshalJSON accepts numbers, booleans, numeric strings and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "":
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	case "false":
		*f = false
		return nil
	}
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("flag: unexpected value %s", data)
	}
	*f = n != 0
	return nil
}

// Status is the response envelope's status, sent as true or "true".
type Status bool

// UnmarshalJSON accepts true and "true"; anything else reads as false.
func (s *Status) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", `"true"`:
		*s = true
	default:
		*s = false
	}
	return nil
}

// Feed is a podcast as returned by the directory.
type Feed struct {
	ID                     int64             `json:"id"`
	PodcastGUID            string            `json:"podcastGuid,omitempty"`
	URL                    string            `json:"url"`
	Title                  string            `json:"title"`
	Description            string            `json:"description"`
	Author                 string            `json:"author"`
	OwnerName              string            `json:"ownerName,omitempty"`
	Image                  string            `json:"image"`
	Artwork                string            `json:"artwork"`
	Link                   string            `json:"link,omitempty"`
	OriginalURL            string            `json:"originalUrl,omitempty"`
	LastUpdateTime         int64             `json:"lastUpdateTime,omitempty"`
	LastCrawlTime          int64             `json:"lastCrawlTime,omitempty"`
	LastParseTime          int64             `json:"lastParseTime,omitempty"`
	LastGoodHTTPStatusTime int64             `json:"lastGoodHttpStatusTime,omitempty"`
	LastHTTPStatus         *int              `json:"lastHttpStatus,omitempty"`
	ContentType            string            `json:"contentType,omitempty"`
	ItunesID               *int64            `json:"itunesId"`
	Generator              string            `json:"generator,omitempty"`
	Language               string            `json:"language"`
	Explicit               Flag              `json:"explicit"`
	Type                   *int              `json:"type,omitempty"`
	Medium                 string            `json:"medium,omitempty"`
	Dead                   Flag              `json:"dead"`
	EpisodeCount           int               `json:"episodeCount,omitempty"`
	CrawlErrors            int               `json:"crawlErrors"`
	ParseErrors            int               `json:"parseErrors"`
	Categories             map[string]string `json:"categories"`
	Locked                 Flag              `json:"locked"`
	ImageURLHash           *int64            `json:"imageUrlHash,omitempty"`
	NewestItemPubdate      int64             `json:"newestItemPubdate,omitempty"`
	NewestItemPublishTime  int64             `json:"newestItemPublishTime,omitempty"`
	TrendScore             float64           `json:"trendScore,omitempty"`
}

// Episode is a feed item as returned by the directory.
type Episode struct {
	ID                  int64  `json:"id"`
	Title               string `json:"title"`
	Link                string `json:"link,omitempty"`
	Description         string `json:"description"`
	GUID                string `json:"guid"`
	DatePublished       int64  `json:"datePublished"`
	DatePublishedPretty string `json:"datePublishedPretty"`
	DateCrawled         int64  `json:"dateCrawled,omitempty"`
	EnclosureURL        string `json:"enclosureUrl"`
	EnclosureType       string `json:"enclosureType"`
	EnclosureLength     *int64 `json:"enclosureLength,omitempty"`
	Duration            *int64 `json:"duration,omitempty"`
	Explicit            Flag   `json:"explicit"`
	Episode             *int   `json:"episode,omitempty"`
	EpisodeType         string `json:"episodeType,omitempty"`
	Season              *int   `json:"season,omitempty"`
	Image               string `json:"image,omitempty"`
	FeedItunesID        *int64 `json:"feedItunesId,omitempty"`
	FeedImage           string `json:"feedImage,omitempty"`
	FeedID              int64  `json:"feedId"`
	PodcastGUID         string `json:"podcastGuid"`
	ChaptersURL         string `json:"chaptersUrl,omitempty"`
	TranscriptURL       string `json:"transcriptUrl,omitempty"`
}

// FeedsResponse answers title searches and trending queries.
type FeedsResponse struct {
	Status      Status `json:"status"`
	Feeds       []Feed `json:"feeds"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// EpisodesResponse answers episode listings.
type EpisodesResponse struct {
	Status      Status    `json:"status"`
	Items       []Episode `json:"items"`
	Count       int       `json:"count"`
	Description string    `json:"description"`
}

type feedResponse struct {
	Status      Status          `json:"status"`
	Feed        json.RawMessage `json:"feed"`
	Description string          `json:"description"`
}

// TrendingOptions narrows a trending query.
type TrendingOptions struct {
	Max        int
	Lang       string
	Categories []string
}
