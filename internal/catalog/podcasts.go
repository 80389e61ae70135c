package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"podvoice/internal/services"
)

const podcastColumns = "id, created_at, feed_id, podcast_guid, title, description, link, image, author, language, explicit, categories, url, original_url, owner_name, artwork, last_update_time, last_crawl_time, last_parse_time, last_good_http_status_time, last_http_status, content_type, itunes_id, generator, type, medium, dead, episode_count, crawl_errors, parse_errors, locked, image_url_hash, newest_item_pubdate"

// podcastWriteColumns are set on insert and refreshed on conflict.
var podcastWriteColumns = []string{
	"podcast_guid", "title", "description", "link", "image", "author", "language", "explicit",
	"categories", "url", "original_url", "owner_name", "artwork", "last_update_time",
	"last_crawl_time", "last_parse_time", "last_good_http_status_time", "last_http_status",
	"content_type", "itunes_id", "generator", "type", "medium", "dead", "episode_count",
	"crawl_errors", "parse_errors", "locked", "image_url_hash", "newest_item_pubdate",
}

func scanPodcast(scanner interface{ Scan(dest ...any) error }) (*Podcast, error) {
	var (
		p          Podcast
		categories sql.NullString
	)
	if err := scanner.Scan(
		&p.ID,
		&p.CreatedAt,
		&p.FeedID,
		&p.PodcastGUID,
		&p.Title,
		&p.Description,
		&p.Link,
		&p.Image,
		&p.Author,
		&p.Language,
		&p.Explicit,
		&categories,
		&p.URL,
		&p.OriginalURL,
		&p.OwnerName,
		&p.Artwork,
		&p.LastUpdateTime,
		&p.LastCrawlTime,
		&p.LastParseTime,
		&p.LastGoodHTTPStatusTime,
		&p.LastHTTPStatus,
		&p.ContentType,
		&p.ItunesID,
		&p.Generator,
		&p.Type,
		&p.Medium,
		&p.Dead,
		&p.EpisodeCount,
		&p.CrawlErrors,
		&p.ParseErrors,
		&p.Locked,
		&p.ImageURLHash,
		&p.NewestItemPubdate,
	); err != nil {
		return nil, err
	}
	p.Categories = map[string]string{}
	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &p.Categories); err != nil {
			return nil, fmt.Errorf("decode categories for podcast %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func podcastWriteArgs(p Podcast) ([]any, error) {
	categories := p.Categories
	if categories == nil {
		categories = map[string]string{}
	}
	encoded, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}
	return []any{
		p.PodcastGUID, p.Title, p.Description, p.Link, p.Image, p.Author, p.Language, p.Explicit,
		string(encoded), p.URL, p.OriginalURL, p.OwnerName, p.Artwork, p.LastUpdateTime,
		p.LastCrawlTime, p.LastParseTime, p.LastGoodHTTPStatusTime, p.LastHTTPStatus,
		p.ContentType, p.ItunesID, p.Generator, p.Type, p.Medium, p.Dead, p.EpisodeCount,
		p.CrawlErrors, p.ParseErrors, p.Locked, p.ImageURLHash, p.NewestItemPubdate,
	}, nil
}

func podcastInsertSQL(onConflict string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(podcastWriteColumns)+2), ", ")
	return "INSERT INTO podcasts (created_at, feed_id, " + strings.Join(podcastWriteColumns, ", ") + ") VALUES (" +
		placeholders + ") " + onConflict + " RETURNING " + podcastColumns
}

func podcastUpsertSQL() string {
	sets := make([]string, len(podcastWriteColumns))
	for i, col := range podcastWriteColumns {
		sets[i] = col + " = excluded." + col
	}
	return podcastInsertSQL("ON CONFLICT (feed_id) DO UPDATE SET " + strings.Join(sets, ", "))
}

func validatePodcast(p Podcast) error {
	if strings.TrimSpace(p.FeedID) == "" {
		return services.Wrap(services.ErrValidation, component, "upsert podcast", "feed_id is required", nil)
	}
	if strings.TrimSpace(p.URL) == "" {
		return services.Wrap(services.ErrValidation, component, "upsert podcast", "url is required", nil)
	}
	if p.Type != nil && *p.Type != 0 && *p.Type != 1 {
		return services.Wrap(services.ErrValidation, component, "upsert podcast", "type must be 0 or 1", nil)
	}
	return nil
}

func (s *Store) upsertPodcast(ctx context.Context, q queryer, p Podcast) (*Podcast, error) {
	if err := validatePodcast(p); err != nil {
		return nil, err
	}
	args, err := podcastWriteArgs(p)
	if err != nil {
		return nil, err
	}
	args = append([]any{s.timestamp(), p.FeedID}, args...)
	query := s.rebind(podcastUpsertSQL())
	var saved *Podcast
	err = retryOnBusy(ctx, func() error {
		var scanErr error
		saved, scanErr = scanPodcast(q.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		return nil, wrapDB("upsert podcast", err)
	}
	return saved, nil
}

// UpsertPodcast inserts p or refreshes the row with the same feed_id, and
// returns the stored row.
func (s *Store) UpsertPodcast(ctx context.Context, p Podcast) (*Podcast, error) {
	return s.upsertPodcast(ensureContext(ctx), s.db, p)
}

// UpsertPodcasts upserts every podcast in one transaction and returns the
// stored rows in input order.
func (s *Store) UpsertPodcasts(ctx context.Context, podcasts []Podcast) ([]Podcast, error) {
	ctx = ensureContext(ctx)
	var saved []Podcast
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		saved = make([]Podcast, 0, len(podcasts))
		for _, p := range podcasts {
			row, err := s.upsertPodcast(ctx, tx, p)
			if err != nil {
				return err
			}
			saved = append(saved, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// InsertPodcastIfAbsent stores p unless a row with its feed_id exists. It
// returns the stored row and whether it was created.
func (s *Store) InsertPodcastIfAbsent(ctx context.Context, p Podcast) (*Podcast, bool, error) {
	ctx = ensureContext(ctx)
	if err := validatePodcast(p); err != nil {
		return nil, false, err
	}
	existing, err := s.GetPodcastByFeedID(ctx, p.FeedID)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	args, err := podcastWriteArgs(p)
	if err != nil {
		return nil, false, err
	}
	args = append([]any{s.timestamp(), p.FeedID}, args...)
	query := s.rebind(podcastInsertSQL("ON CONFLICT (feed_id) DO NOTHING"))
	var saved *Podcast
	err = retryOnBusy(ctx, func() error {
		var scanErr error
		saved, scanErr = scanPodcast(s.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a race with a concurrent insert.
		existing, getErr := s.GetPodcastByFeedID(ctx, p.FeedID)
		return existing, false, getErr
	}
	if err != nil {
		return nil, false, wrapDB("insert podcast", err)
	}
	return saved, true, nil
}

// GetPodcast loads a podcast by primary key.
func (s *Store) GetPodcast(ctx context.Context, id int64) (*Podcast, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+podcastColumns+" FROM podcasts WHERE id = ?"), id)
	p, err := scanPodcast(row)
	if err != nil {
		return nil, wrapDB(fmt.Sprintf("get podcast %d", id), err)
	}
	return p, nil
}

// GetPodcastByFeedID loads a podcast by its directory feed id.
func (s *Store) GetPodcastByFeedID(ctx context.Context, feedID string) (*Podcast, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+podcastColumns+" FROM podcasts WHERE feed_id = ?"), feedID)
	p, err := scanPodcast(row)
	if err != nil {
		return nil, wrapDB("get podcast by feed "+feedID, err)
	}
	return p, nil
}

// CountPodcasts returns the number of stored podcasts.
func (s *Store) CountPodcasts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM podcasts").Scan(&n); err != nil {
		return 0, wrapDB("count podcasts", err)
	}
	return n, nil
}
