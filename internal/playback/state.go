package playback

import "math"

// TrackRef identifies a playable audio resource. Source is the identity; the
// remaining fields are display and bookkeeping metadata.
type TrackRef struct {
	ID       int64  `json:"id,omitempty"`
	Source   string `json:"src"`
	MIMEType string `json:"type"`
	Title    string `json:"title,omitempty"`
}

// SameSource reports whether two track references point at the same audio.
func (t *TrackRef) SameSource(other *TrackRef) bool {
	if t == nil || other == nil {
		return false
	}
	return t.Source == other.Source
}

// State is a snapshot of the playback session.
type State struct {
	Playing      bool      `json:"playing"`
	Muted        bool      `json:"muted"`
	CurrentTime  int       `json:"currentTime"`
	Duration     int       `json:"duration"`
	ActiveTrack  *TrackRef `json:"activeTrack"`
	PlaybackRate float64   `json:"playbackRate"`
}

// DefaultPlaybackRate is the rate a fresh session starts with.
const DefaultPlaybackRate = 1.0

// InitialState returns the state of a session before any track is chosen.
func InitialState() State {
	return State{PlaybackRate: DefaultPlaybackRate}
}

// wholeSeconds truncates a media-reported time to whole seconds. Unknown
// values (NaN, infinities, negatives) read as zero.
func wholeSeconds(value float64) int {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0
	}
	return int(math.Floor(value))
}
