package api

import (
	"podvoice/internal/catalog"
	"podvoice/internal/logging"
	"podvoice/internal/podcastindex"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Status describes a running server.
type Status struct {
	Version        string `json:"version"`
	Dialect        string `json:"dialect"`
	SchemaVersion  int64  `json:"schemaVersion"`
	Podcasts       int    `json:"podcasts"`
	Sessions       int    `json:"sessions"`
	SpeechProvider string `json:"speechProvider"`
	AuthRequired   bool   `json:"authRequired"`
}

// LogStreamResponse pages through the in-memory log hub.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// AddPodcastRequest carries a directory feed to store.
type AddPodcastRequest struct {
	Podcast *podcastindex.Feed `json:"podcast"`
}

// AddPodcastResponse answers AddPodcastRequest.
type AddPodcastResponse struct {
	Source  string           `json:"source"`
	Podcast *catalog.Podcast `json:"podcast"`
}

// AddEpisodesRequest carries directory episodes for one stored podcast.
type AddEpisodesRequest struct {
	Episodes  []podcastindex.Episode `json:"episodes"`
	PodcastID int64                  `json:"podcast_id"`
}

// TrendingItem is one entry of AddTrendingRequest.
type TrendingItem struct {
	Podcast struct {
		ID int64 `json:"id"`
	} `json:"podcast"`
	TrendScore float64 `json:"trendScore"`
}

// AddTrendingRequest replaces the stored trending list.
type AddTrendingRequest struct {
	TrendingPodcasts []TrendingItem `json:"trendingPodcasts"`
}

// MessageResponse acknowledges a write without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}
