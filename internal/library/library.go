package library

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"podvoice/internal/catalog"
	"podvoice/internal/config"
	"podvoice/internal/logging"
	"podvoice/internal/podcastindex"
	"podvoice/internal/services"
)

const component = "library"

// Source tells where FetchPodcast found the podcast row.
type Source string

const (
	SourceDatabase Source = "database"
	SourceAPI      Source = "api"
)

// Store is the catalog surface the service writes through.
type Store interface {
	UpsertPodcasts(ctx context.Context, podcasts []catalog.Podcast) ([]catalog.Podcast, error)
	UpsertPodcast(ctx context.Context, p catalog.Podcast) (*catalog.Podcast, error)
	InsertPodcastIfAbsent(ctx context.Context, p catalog.Podcast) (*catalog.Podcast, bool, error)
	UpsertEpisodes(ctx context.Context, podcastID int64, episodes []catalog.Episode) ([]catalog.Episode, error)
	ReplaceTrending(ctx context.Context, entries []catalog.TrendingEntry) (int, error)
}

var _ Store = (*catalog.Store)(nil)

// FetchResult answers FetchPodcast.
type FetchResult struct {
	Podcast      *catalog.Podcast `json:"podcast"`
	Source       Source           `json:"source"`
	EpisodeCount int              `json:"episodeCount"`
}

// RefreshResult summarizes a trending refresh.
type RefreshResult struct {
	Podcasts []catalog.Podcast `json:"podcasts"`
	Trending int               `json:"trending"`
	Episodes int               `json:"episodes"`
	// Failed lists feed ids whose episodes could not be stored.
	Failed []string `json:"failed,omitempty"`
}

// SyncResult answers SyncFeed.
type SyncResult struct {
	Podcast  *catalog.Podcast  `json:"podcast"`
	Episodes []catalog.Episode `json:"episodes"`
}

// Service runs directory-to-catalog flows.
type Service struct {
	directory    podcastindex.Directory
	store        Store
	logger       *slog.Logger
	now          func() time.Time
	episodeLimit int
	trending     podcastindex.TrendingOptions
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock stamped on crawled episodes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEpisodeLimit sets how many recent episodes a fetch stores.
func WithEpisodeLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.episodeLimit = limit
		}
	}
}

// WithTrendingOptions sets the trending query.
func WithTrendingOptions(opts podcastindex.TrendingOptions) Option {
	return func(s *Service) {
		s.trending = opts
	}
}

// New builds a Service.
func New(directory podcastindex.Directory, store Store, opts ...Option) *Service {
	s := &Service{
		directory:    directory,
		store:        store,
		logger:       logging.NewNop(),
		now:          time.Now,
		episodeLimit: 10,
		trending: podcastindex.TrendingOptions{
			Max:        25,
			Lang:       "en",
			Categories: []string{"9", "11", "12", "102", "112"},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, component)
	return s
}

// NewFromConfig wires the [podcast_index] limits into a Service.
func NewFromConfig(cfg *config.Config, directory podcastindex.Directory, store Store, logger *slog.Logger) *Service {
	return New(directory, store,
		WithLogger(logger),
		WithEpisodeLimit(cfg.PodcastIndex.EpisodeLimit),
		WithTrendingOptions(podcastindex.TrendingOptions{
			Max:        cfg.PodcastIndex.TrendingMax,
			Lang:       cfg.PodcastIndex.TrendingLang,
			Categories: cfg.PodcastIndex.TrendingCategories,
		}),
	)
}

// FetchPodcast searches the directory by title, keeps the first match, stores
// it unless the catalog already has it, and refreshes its latest episodes.
// Episode failures are logged and reported as an episode count of zero.
func (s *Service) FetchPodcast(ctx context.Context, title string) (*FetchResult, error) {
	started := time.Now()
	found, err := s.directory.SearchByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(found.Feeds) == 0 {
		return nil, services.Wrap(services.ErrNotFound, component, "fetch podcast", fmt.Sprintf("no podcast matches %q", title), nil)
	}
	feedID := found.Feeds[0].ID
	ctx = services.WithFeedID(ctx, feedID)
	logger := logging.WithContext(ctx, s.logger)

	feed, err := s.directory.PodcastByFeedID(ctx, feedID)
	if err != nil {
		return nil, err
	}
	podcast, created, err := s.store.InsertPodcastIfAbsent(ctx, catalog.PodcastFromFeed(*feed))
	if err != nil {
		return nil, err
	}
	result := &FetchResult{Podcast: podcast, Source: SourceDatabase}
	if created {
		result.Source = SourceAPI
	}

	episodes, err := s.directory.EpisodesByFeedID(ctx, feedID, s.episodeLimit)
	if err != nil {
		logging.WarnWithContext(logger, "episode fetch failed", "episodes_fetch_failed",
			logging.String(logging.FieldErrorHint, "podcast stored without fresh episodes"),
			logging.Error(err),
		)
		return result, nil
	}
	if _, err := s.store.UpsertEpisodes(ctx, podcast.ID, catalog.EpisodesFromItems(podcast.ID, episodes.Items, s.now())); err != nil {
		logging.WarnWithContext(logger, "episode store failed", "episodes_store_failed", logging.Error(err))
	}
	result.EpisodeCount = episodes.Count

	logger.Info("podcast fetched",
		logging.String("title", podcast.Title),
		logging.String("source", string(result.Source)),
		logging.Int("episodes", episodes.Count),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// RefreshTrending pulls the trending feeds, upserts them, replaces the
// trending list and stores each podcast's latest episodes. A podcast whose
// episodes fail is logged and skipped.
func (s *Service) RefreshTrending(ctx context.Context) (*RefreshResult, error) {
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()

	trending, err := s.directory.Trending(ctx, s.trending)
	if err != nil {
		return nil, err
	}

	podcasts := make([]catalog.Podcast, 0, len(trending.Feeds))
	for _, feed := range trending.Feeds {
		// Trending payloads omit most details; fall back to them when the
		// lookup fails.
		full, err := s.directory.PodcastByFeedID(services.WithFeedID(ctx, feed.ID), feed.ID)
		if err != nil {
			logger.Debug("feed details unavailable", logging.Int64(logging.FieldFeedID, feed.ID), logging.Error(err))
			full = &feed
		}
		podcasts = append(podcasts, catalog.PodcastFromFeed(*full))
	}
	saved, err := s.store.UpsertPodcasts(ctx, podcasts)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(saved))
	for _, p := range saved {
		ids[p.FeedID] = p.ID
	}
	entries := make([]catalog.TrendingEntry, 0, len(trending.Feeds))
	for _, feed := range trending.Feeds {
		entries = append(entries, catalog.TrendingEntry{
			PodcastID:  ids[strconv.FormatInt(feed.ID, 10)],
			TrendScore: feed.TrendScore,
		})
	}
	stored, err := s.store.ReplaceTrending(ctx, entries)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Podcasts: saved, Trending: stored}
	for _, feed := range trending.Feeds {
		feedCtx := services.WithFeedID(ctx, feed.ID)
		feedLogger := logging.WithContext(feedCtx, s.logger)
		podcastID := ids[strconv.FormatInt(feed.ID, 10)]
		n, err := s.storeEpisodes(feedCtx, feed.ID, podcastID)
		if err != nil {
			logging.WarnWithContext(feedLogger, "trending episodes skipped", "trending_episodes_failed",
				logging.String("title", feed.Title),
				logging.Error(err),
			)
			result.Failed = append(result.Failed, strconv.FormatInt(feed.ID, 10))
			continue
		}
		result.Episodes += n
	}

	logger.Info("trending refreshed",
		logging.Int("podcasts", len(saved)),
		logging.Int("trending", stored),
		logging.Int("episodes", result.Episodes),
		logging.Int("failed", len(result.Failed)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// SyncFeed refreshes one feed's details and latest episodes.
func (s *Service) SyncFeed(ctx context.Context, feedID int64) (*SyncResult, error) {
	ctx = services.WithFeedID(ctx, feedID)
	feed, err := s.directory.PodcastByFeedID(ctx, feedID)
	if err != nil {
		return nil, err
	}
	podcast, err := s.store.UpsertPodcast(ctx, catalog.PodcastFromFeed(*feed))
	if err != nil {
		return nil, err
	}
	items, err := s.directory.EpisodesByFeedID(ctx, feedID, s.episodeLimit)
	if err != nil {
		return nil, err
	}
	episodes, err := s.store.UpsertEpisodes(ctx, podcast.ID, catalog.EpisodesFromItems(podcast.ID, items.Items, s.now()))
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("feed synced",
		logging.String("title", podcast.Title),
		logging.Int("episodes", len(episodes)),
	)
	return &SyncResult{Podcast: podcast, Episodes: episodes}, nil
}

func (s *Service) storeEpisodes(ctx context.Context, feedID, podcastID int64) (int, error) {
	if podcastID == 0 {
		return 0, services.Wrap(services.ErrNotFound, component, "store episodes", "podcast row missing", nil)
	}
	items, err := s.directory.EpisodesByFeedID(ctx, feedID, s.episodeLimit)
	if err != nil {
		return 0, err
	}
	saved, err := s.store.UpsertEpisodes(ctx, podcastID, catalog.EpisodesFromItems(podcastID, items.Items, s.now()))
	if err != nil {
		return 0, err
	}
	return len(saved), nil
}
