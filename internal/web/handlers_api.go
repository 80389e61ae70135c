package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"podvoice/internal/api"
	"podvoice/internal/catalog"
	"podvoice/internal/logging"
	"podvoice/internal/podcastindex"
	"podvoice/internal/services"
)

const maxRequestBody = 4 << 20

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := api.Status{
		Version:        s.version,
		Dialect:        string(s.store.Dialect()),
		Sessions:       s.ActiveSessions(),
		SpeechProvider: "browser",
		AuthRequired:   s.cfg.Server.APIToken != "",
	}
	if version, err := s.store.SchemaVersion(r.Context()); err == nil {
		status.SchemaVersion = version
	} else {
		s.log().Warn("schema version unavailable", logging.Error(err))
	}
	if count, err := s.store.CountPodcasts(r.Context()); err == nil {
		status.Podcasts = count
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: nil, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	componentFilter := strings.TrimSpace(query.Get("component"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = s.hub.Tail(limit)
	} else {
		var err error
		events, next, err = s.hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if componentFilter != "" && !strings.EqualFold(componentFilter, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func (s *Server) handleDirectorySearch(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		s.writeError(w, http.StatusBadRequest, "title parameter is required")
		return
	}
	started := time.Now()
	found, err := s.directory.SearchByTitle(r.Context(), title)
	if err != nil {
		s.writeServiceError(w, r, "directory search", err)
		return
	}
	logging.WithContext(r.Context(), s.log()).Info("directory search",
		logging.String("title", title),
		logging.Int("feeds", len(found.Feeds)),
		logging.Duration("elapsed", time.Since(started)),
	)
	if len(found.Feeds) == 0 {
		s.writeError(w, http.StatusNotFound, "no podcasts found")
		return
	}
	s.writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleDirectoryFeed(w http.ResponseWriter, r *http.Request) {
	feedID, ok := s.feedIDParam(w, r)
	if !ok {
		return
	}
	feed, err := s.directory.PodcastByFeedID(services.WithFeedID(r.Context(), feedID), feedID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "podcast not found")
			return
		}
		s.writeServiceError(w, r, "directory podcast", err)
		return
	}
	s.writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleDirectoryEpisodes(w http.ResponseWriter, r *http.Request) {
	feedID, ok := s.feedIDParam(w, r)
	if !ok {
		return
	}
	episodes, err := s.directory.EpisodesByFeedID(services.WithFeedID(r.Context(), feedID), feedID, s.cfg.PodcastIndex.EpisodeLimit)
	if err != nil {
		s.writeServiceError(w, r, "directory episodes", err)
		return
	}
	s.writeJSON(w, http.StatusOK, episodes)
}

func (s *Server) handleDirectoryTrending(w http.ResponseWriter, r *http.Request) {
	trending, err := s.directory.Trending(r.Context(), podcastindex.TrendingOptions{
		Max:        s.cfg.PodcastIndex.TrendingMax,
		Lang:       s.cfg.PodcastIndex.TrendingLang,
		Categories: s.cfg.PodcastIndex.TrendingCategories,
	})
	if err != nil {
		s.writeServiceError(w, r, "directory trending", err)
		return
	}
	s.writeJSON(w, http.StatusOK, trending)
}

func (s *Server) feedIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("feedId"))
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "feedId parameter is required")
		return 0, false
	}
	feedID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || feedID <= 0 {
		s.writeError(w, http.StatusBadRequest, "feedId must be a positive integer")
		return 0, false
	}
	return feedID, true
}

func (s *Server) handleAddPodcast(w http.ResponseWriter, r *http.Request) {
	var req api.AddPodcastRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Podcast == nil {
		s.writeError(w, http.StatusBadRequest, "podcast is required")
		return
	}
	if err := podcastindex.ValidateFeed(*req.Podcast); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := services.WithFeedID(r.Context(), req.Podcast.ID)
	saved, err := s.store.UpsertPodcast(ctx, catalog.PodcastFromFeed(*req.Podcast))
	if err != nil {
		s.writeServiceError(w, r, "store podcast", err)
		return
	}
	logging.WithContext(ctx, s.log()).Info("podcast stored",
		logging.Int64("podcast_id", saved.ID),
		logging.String("title", saved.Title),
	)
	s.writeJSON(w, http.StatusCreated, api.AddPodcastResponse{Source: "api", Podcast: saved})
}

func (s *Server) handleAddEpisodes(w http.ResponseWriter, r *http.Request) {
	var req api.AddEpisodesRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.PodcastID <= 0 {
		s.writeError(w, http.StatusBadRequest, "podcast_id must be a positive integer")
		return
	}
	if err := podcastindex.ValidateEpisodes(req.Episodes); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetPodcast(r.Context(), req.PodcastID); err != nil {
		s.writeServiceError(w, r, "store episodes", err)
		return
	}
	started := time.Now()
	saved, err := s.store.UpsertEpisodes(r.Context(), req.PodcastID, catalog.EpisodesFromItems(req.PodcastID, req.Episodes, s.now()))
	if err != nil {
		s.writeServiceError(w, r, "store episodes", err)
		return
	}
	logging.WithContext(r.Context(), s.log()).Info("episodes stored",
		logging.Int64("podcast_id", req.PodcastID),
		logging.Int("episodes", len(saved)),
		logging.Duration("elapsed", time.Since(started)),
	)
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAddTrending(w http.ResponseWriter, r *http.Request) {
	var req api.AddTrendingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	entries := make([]catalog.TrendingEntry, 0, len(req.TrendingPodcasts))
	for i, item := range req.TrendingPodcasts {
		if item.Podcast.ID <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("trendingPodcasts[%d].podcast.id must be a positive integer", i))
			return
		}
		entries = append(entries, catalog.TrendingEntry{PodcastID: item.Podcast.ID, TrendScore: item.TrendScore})
	}
	if _, err := s.store.ReplaceTrending(r.Context(), entries); err != nil {
		s.writeServiceError(w, r, "store trending", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Trending podcasts updated successfully"})
}

func (s *Server) handleGetPodcast(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	podcast, err := s.store.GetPodcast(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "get podcast", err)
		return
	}
	s.writeJSON(w, http.StatusOK, podcast)
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("podcast_id"))
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "podcast_id parameter is required")
		return
	}
	podcastID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || podcastID <= 0 {
		s.writeError(w, http.StatusBadRequest, "podcast_id must be a positive integer")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	episodes, err := s.store.ListEpisodes(r.Context(), podcastID, limit)
	if err != nil {
		s.writeServiceError(w, r, "list episodes", err)
		return
	}
	s.writeJSON(w, http.StatusOK, episodes)
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	episode, err := s.store.GetEpisode(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "get episode", err)
		return
	}
	s.writeJSON(w, http.StatusOK, episode)
}

func (s *Server) handleListTrending(w http.ResponseWriter, r *http.Request) {
	trending, err := s.store.ListTrending(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "list trending", err)
		return
	}
	s.writeJSON(w, http.StatusOK, trending)
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		s.writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	minSimilarity := -1.0
	if raw := strings.TrimSpace(query.Get("min_similarity")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			s.writeError(w, http.StatusBadRequest, "min_similarity must be between 0 and 1")
			return
		}
		minSimilarity = parsed
	}
	results, err := s.store.Search(r.Context(), q, limit, minSimilarity)
	if err != nil {
		s.writeServiceError(w, r, "search catalog", err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleFetchPodcast(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		s.writeError(w, http.StatusBadRequest, "title parameter is required")
		return
	}
	result, err := s.library.FetchPodcast(r.Context(), title)
	if err != nil {
		s.writeServiceError(w, r, "fetch podcast", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefreshTrending(w http.ResponseWriter, r *http.Request) {
	result, err := s.library.RefreshTrending(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "refresh trending", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON request body into out and answers 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := decoder.Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
