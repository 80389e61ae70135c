package catalog

import (
	"strconv"
	"strings"
	"time"

	"podvoice/internal/podcastindex"
	"podvoice/internal/textutil"
)

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func optionalInt(value *int) *int64 {
	if value == nil {
		return nil
	}
	v := int64(*value)
	return &v
}

// nonZero drops zero values the directory uses for "unknown".
func nonZero(value *int64) *int64 {
	if value == nil || *value == 0 {
		return nil
	}
	return value
}

// PodcastFromFeed maps a directory feed onto a podcast row. The description is
// sanitized to basic formatting tags.
func PodcastFromFeed(feed podcastindex.Feed) Podcast {
	var feedType *int64
	if feed.Type != nil && (*feed.Type == 0 || *feed.Type == 1) {
		feedType = optionalInt(feed.Type)
	}
	var hash *string
	if feed.ImageURLHash != nil {
		v := strconv.FormatInt(*feed.ImageURLHash, 10)
		hash = &v
	}
	var status *int64
	if feed.LastHTTPStatus != nil {
		v := int64(*feed.LastHTTPStatus)
		status = &v
	}
	categories := feed.Categories
	if categories == nil {
		categories = map[string]string{}
	}
	return Podcast{
		FeedID:                 strconv.FormatInt(feed.ID, 10),
		PodcastGUID:            optionalString(feed.PodcastGUID),
		URL:                    feed.URL,
		Title:                  feed.Title,
		Description:            textutil.SanitizeHTML(feed.Description),
		Author:                 feed.Author,
		OwnerName:              optionalString(feed.OwnerName),
		OriginalURL:            optionalString(feed.OriginalURL),
		Link:                   optionalString(feed.Link),
		Image:                  feed.Image,
		Artwork:                feed.Artwork,
		LastUpdateTime:         unixToISO(feed.LastUpdateTime),
		LastCrawlTime:          unixToISO(feed.LastCrawlTime),
		LastParseTime:          unixToISO(feed.LastParseTime),
		LastGoodHTTPStatusTime: unixToISO(feed.LastGoodHTTPStatusTime),
		LastHTTPStatus:         status,
		ContentType:            optionalString(feed.ContentType),
		ItunesID:               feed.ItunesID,
		Generator:              optionalString(feed.Generator),
		Language:               feed.Language,
		Explicit:               bool(feed.Explicit),
		Type:                   feedType,
		Medium:                 optionalString(feed.Medium),
		Dead:                   bool(feed.Dead),
		EpisodeCount:           int64(feed.EpisodeCount),
		CrawlErrors:            int64(feed.CrawlErrors),
		ParseErrors:            int64(feed.ParseErrors),
		Categories:             categories,
		Locked:                 bool(feed.Locked),
		ImageURLHash:           hash,
		NewestItemPubdate:      unixToISO(feed.NewestItemPubdate),
	}
}

// EpisodesFromItems maps directory items onto episode rows for podcastID.
// crawledAt stamps date_crawled for items the directory has not crawled.
func EpisodesFromItems(podcastID int64, items []podcastindex.Episode, crawledAt time.Time) []Episode {
	crawled := isoTime(crawledAt)
	out := make([]Episode, 0, len(items))
	for _, item := range items {
		var feedID *int64
		if item.FeedID != 0 {
			v := item.FeedID
			feedID = &v
		}
		published := ""
		if p := unixToISO(item.DatePublished); p != nil {
			published = *p
		} else {
			published = isoTime(time.Unix(0, 0))
		}
		c := crawled
		if item.DateCrawled > 0 {
			c = *unixToISO(item.DateCrawled)
		}
		out = append(out, Episode{
			EpisodeGUID:     item.GUID,
			PodcastID:       podcastID,
			FeedID:          feedID,
			Title:           item.Title,
			Link:            optionalString(item.Link),
			Description:     textutil.SanitizeHTML(item.Description),
			DatePublished:   published,
			DateCrawled:     &c,
			EnclosureURL:    item.EnclosureURL,
			EnclosureType:   item.EnclosureType,
			EnclosureLength: nonZero(item.EnclosureLength),
			Duration:        nonZero(item.Duration),
			Explicit:        bool(item.Explicit),
			EpisodeType:     optionalString(item.EpisodeType),
			EpisodeNumber:   nonZero(optionalInt(item.Episode)),
			Season:          nonZero(optionalInt(item.Season)),
			Image:           optionalString(item.Image),
			ChaptersURL:     optionalString(item.ChaptersURL),
			TranscriptURL:   optionalString(item.TranscriptURL),
		})
	}
	return out
}
