package podcastindex

import (
	"fmt"
	"net/url"
	"strings"
)

var episodeTypes = map[string]bool{"full": true, "trailer": true, "bonus": true}

func absoluteURL(field, raw string, required bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not an absolute url: %q", field, raw)
	}
	return nil
}

func validateFeed(idx int, f Feed) error {
	prefix := fmt.Sprintf("feeds[%d]", idx)
	if idx < 0 {
		prefix = "feed"
	}
	if f.ID <= 0 {
		return fmt.Errorf("%s.id must be positive", prefix)
	}
	if err := absoluteURL(prefix+".url", f.URL, true); err != nil {
		return err
	}
	for _, field := range [][2]string{
		{".image", f.Image},
		{".artwork", f.Artwork},
		{".link", f.Link},
		{".originalUrl", f.OriginalURL},
	} {
		if err := absoluteURL(prefix+field[0], field[1], false); err != nil {
			return err
		}
	}
	if f.Type != nil && *f.Type != 0 && *f.Type != 1 {
		return fmt.Errorf("%s.type must be 0 or 1, got %d", prefix, *f.Type)
	}
	return nil
}

func validateEpisode(idx int, e Episode) error {
	prefix := fmt.Sprintf("items[%d]", idx)
	if e.ID <= 0 {
		return fmt.Errorf("%s.id must be positive", prefix)
	}
	if strings.TrimSpace(e.GUID) == "" {
		return fmt.Errorf("%s.guid is required", prefix)
	}
	if err := absoluteURL(prefix+".enclosureUrl", e.EnclosureURL, true); err != nil {
		return err
	}
	for _, field := range [][2]string{
		{".link", e.Link},
		{".image", e.Image},
		{".feedImage", e.FeedImage},
		{".chaptersUrl", e.ChaptersURL},
		{".transcriptUrl", e.TranscriptURL},
	} {
		if err := absoluteURL(prefix+field[0], field[1], false); err != nil {
			return err
		}
	}
	if e.EpisodeType != "" && !episodeTypes[e.EpisodeType] {
		return fmt.Errorf("%s.episodeType must be full, trailer or bonus, got %q", prefix, e.EpisodeType)
	}
	return nil
}

func (r *FeedsResponse) validate() error {
	if !r.Status {
		return fmt.Errorf("status is not true (%s)", r.Description)
	}
	for i, f := range r.Feeds {
		if err := validateFeed(i, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *EpisodesResponse) validate() error {
	if !r.Status {
		return fmt.Errorf("status is not true (%s)", r.Description)
	}
	for i, e := range r.Items {
		if err := validateEpisode(i, e); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFeed checks a feed received from outside the client, such as a
// request body, with the same rules as directory responses.
func ValidateFeed(f Feed) error {
	return validateFeed(-1, f)
}

// ValidateEpisodes checks episodes received from outside the client.
func ValidateEpisodes(items []Episode) error {
	for i, e := range items {
		if err := validateEpisode(i, e); err != nil {
			return err
		}
	}
	return nil
}
