package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"podvoice/internal/services"
)

// DefaultEpisodeLimit is the page size for episode listings.
const DefaultEpisodeLimit = 10

const episodeColumns = "id, created_at, episode_guid, podcast_id, feed_id, title, link, description, date_published, date_crawled, enclosure_url, enclosure_type, enclosure_length, duration, explicit, episode_type, episode_number, season, image, chapters_url, transcript_url"

var episodeWriteColumns = []string{
	"podcast_id", "feed_id", "title", "link", "description", "date_published", "date_crawled",
	"enclosure_url", "enclosure_type", "enclosure_length", "duration", "explicit", "episode_type",
	"episode_number", "season", "image", "chapters_url", "transcript_url",
}

var validEpisodeTypes = map[string]bool{"full": true, "trailer": true, "bonus": true}

func scanEpisode(scanner interface{ Scan(dest ...any) error }, extra ...any) (*Episode, error) {
	var e Episode
	dest := []any{
		&e.ID,
		&e.CreatedAt,
		&e.EpisodeGUID,
		&e.PodcastID,
		&e.FeedID,
		&e.Title,
		&e.Link,
		&e.Description,
		&e.DatePublished,
		&e.DateCrawled,
		&e.EnclosureURL,
		&e.EnclosureType,
		&e.EnclosureLength,
		&e.Duration,
		&e.Explicit,
		&e.EpisodeType,
		&e.EpisodeNumber,
		&e.Season,
		&e.Image,
		&e.ChaptersURL,
		&e.TranscriptURL,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &e, nil
}

func episodeUpsertSQL() string {
	sets := make([]string, len(episodeWriteColumns))
	for i, col := range episodeWriteColumns {
		sets[i] = col + " = excluded." + col
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(episodeWriteColumns)+2), ", ")
	return "INSERT INTO episodes (created_at, episode_guid, " + strings.Join(episodeWriteColumns, ", ") + ") VALUES (" +
		placeholders + ") ON CONFLICT (episode_guid) DO UPDATE SET " + strings.Join(sets, ", ") +
		" RETURNING " + episodeColumns
}

func validateEpisode(e Episode) error {
	if strings.TrimSpace(e.EpisodeGUID) == "" {
		return services.Wrap(services.ErrValidation, component, "upsert episodes", "episode_guid is required", nil)
	}
	if strings.TrimSpace(e.EnclosureURL) == "" {
		return services.Wrap(services.ErrValidation, component, "upsert episodes", "enclosure_url is required for "+e.EpisodeGUID, nil)
	}
	if e.EpisodeType != nil && !validEpisodeTypes[*e.EpisodeType] {
		return services.Wrap(services.ErrValidation, component, "upsert episodes", "episode_type must be full, trailer or bonus", nil)
	}
	return nil
}

// UpsertEpisodes stores episodes for podcastID, refreshing rows with the same
// episode_guid, and returns the saved rows newest first.
func (s *Store) UpsertEpisodes(ctx context.Context, podcastID int64, episodes []Episode) ([]Episode, error) {
	ctx = ensureContext(ctx)
	if podcastID <= 0 {
		return nil, services.Wrap(services.ErrValidation, component, "upsert episodes", "podcast_id is required", nil)
	}
	for _, e := range episodes {
		if err := validateEpisode(e); err != nil {
			return nil, err
		}
	}
	if len(episodes) == 0 {
		return []Episode{}, nil
	}

	query := s.rebind(episodeUpsertSQL())
	created := s.timestamp()
	var saved []Episode
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		saved = make([]Episode, 0, len(episodes))
		for _, e := range episodes {
			row := tx.QueryRowContext(ctx, query,
				created, e.EpisodeGUID, podcastID, e.FeedID, e.Title, e.Link, e.Description,
				e.DatePublished, e.DateCrawled, e.EnclosureURL, e.EnclosureType, e.EnclosureLength,
				e.Duration, e.Explicit, e.EpisodeType, e.EpisodeNumber, e.Season, e.Image,
				e.ChaptersURL, e.TranscriptURL,
			)
			stored, err := scanEpisode(row)
			if err != nil {
				return err
			}
			saved = append(saved, *stored)
		}
		return nil
	})
	if err != nil {
		return nil, wrapDB("upsert episodes", err)
	}
	sort.SliceStable(saved, func(i, j int) bool {
		return saved[i].DatePublished > saved[j].DatePublished
	})
	return saved, nil
}

// ListEpisodes returns the newest episodes of a podcast. limit <= 0 uses
// DefaultEpisodeLimit.
func (s *Store) ListEpisodes(ctx context.Context, podcastID int64, limit int) ([]Episode, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultEpisodeLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+episodeColumns+" FROM episodes WHERE podcast_id = ? ORDER BY date_published DESC, id DESC LIMIT ?"),
		podcastID, limit)
	if err != nil {
		return nil, wrapDB("list episodes", err)
	}
	defer rows.Close()

	episodes := []Episode{}
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, wrapDB("list episodes", err)
		}
		episodes = append(episodes, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB("list episodes", err)
	}
	return episodes, nil
}

// GetEpisode loads an episode with its podcast summary.
func (s *Store) GetEpisode(ctx context.Context, id int64) (*EpisodeDetail, error) {
	ctx = ensureContext(ctx)
	cols := make([]string, 0, 21)
	for _, col := range strings.Split(episodeColumns, ", ") {
		cols = append(cols, "e."+col)
	}
	query := "SELECT " + strings.Join(cols, ", ") + ", p.id, p.title, p.description, p.artwork " +
		"FROM episodes e JOIN podcasts p ON p.id = e.podcast_id WHERE e.id = ?"
	var summary PodcastSummary
	e, err := scanEpisode(s.db.QueryRowContext(ctx, s.rebind(query), id),
		&summary.ID, &summary.Title, &summary.Description, &summary.Artwork)
	if err != nil {
		return nil, wrapDB(fmt.Sprintf("get episode %d", id), err)
	}
	return &EpisodeDetail{Episode: *e, Podcast: summary}, nil
}
