package playback

import (
	"log/slog"
	"math"
	"sync"

	"podvoice/internal/logging"
)

// Session is the shared playback state machine bound to one Media. All
// methods are safe for concurrent use; mutations are serialized and observers
// see every resulting state in dispatch order.
type Session struct {
	media  Media
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	observers []observer
	nextObsID int
	pending   []State
	draining  bool
}

type observer struct {
	id int
	fn func(State)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for swallowed media failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInitialRate seeds the playback rate used for the first bound track.
func WithInitialRate(rate float64) Option {
	return func(s *Session) {
		if rate > 0 && !math.IsInf(rate, 0) {
			s.state.PlaybackRate = rate
		}
	}
}

// NewSession creates a session that exclusively drives media. The session
// registers itself as the media's listener.
func NewSession(media Media, opts ...Option) *Session {
	s := &Session{
		media:  media,
		logger: logging.NewNop(),
		state:  InitialState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.String(logging.FieldComponent, "playback"))
	media.SetListener(s.handleMediaEvent)
	return s
}

// Snapshot returns the current state. The ActiveTrack pointer is a private
// copy and may be retained by the caller.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Subscribe registers fn to receive every subsequent state. The returned
// function removes the registration.
func (s *Session) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, obs := range s.observers {
			if obs.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Play binds track when it differs from the bound source and requests
// playback. A track whose load fails leaves the previous binding and state
// untouched. With a nil track it resumes the bound source; with nothing ever
// bound it does nothing.
func (s *Session) Play(track *TrackRef) {
	if track != nil && track.Source != "" {
		if s.media.CurrentSource() == track.Source {
			s.dispatch(Action{Kind: ActionSetTrack, Track: track})
		} else if !s.bind(track) {
			return
		}
	}
	if s.media.CurrentSource() == "" {
		s.logger.Debug("play ignored; no source bound")
		return
	}
	s.try("play", s.media.Play())
}

func (s *Session) bind(track *TrackRef) bool {
	current := s.Snapshot()
	if err := s.media.Load(track.Source, track.MIMEType); err != nil {
		s.logger.Debug("media load failed",
			logging.String("source", track.Source),
			logging.Error(err),
		)
		return false
	}
	s.dispatch(Action{Kind: ActionSetTrack, Track: track})
	s.try("pause", s.media.Pause())
	s.try("set playback rate", s.media.SetPlaybackRate(current.PlaybackRate))
	s.try("set muted", s.media.SetMuted(current.Muted))
	s.try("seek", s.media.SetCurrentTime(0))
	s.dispatch(Action{Kind: ActionSetCurrentTime, Seconds: 0})
	s.dispatch(Action{Kind: ActionSetDuration, Seconds: wholeSeconds(s.media.Duration())})
	s.logger.Debug("track bound",
		logging.String("source", track.Source),
		logging.String("title", track.Title),
		logging.Float64("playback_rate", current.PlaybackRate),
	)
	return true
}

// Pause asks the media to stop advancing. It is a no-op when nothing is
// bound.
func (s *Session) Pause() {
	if s.media.CurrentSource() == "" {
		return
	}
	s.try("pause", s.media.Pause())
}

// Toggle pauses when track (or, for nil, the session) is playing and plays
// track otherwise. A track other than the bound one is always played.
func (s *Session) Toggle(track *TrackRef) {
	if s.IsPlaying(track) {
		s.Pause()
		return
	}
	s.Play(track)
}

// SeekBy moves the position by delta seconds. Results below zero floor at
// zero; overshoot is left to the media's own clamping.
func (s *Session) SeekBy(delta float64) {
	if s.media.CurrentSource() == "" || math.IsNaN(delta) {
		return
	}
	target := s.media.CurrentTime() + delta
	if target < 0 {
		target = 0
	}
	s.try("seek", s.media.SetCurrentTime(target))
}

// Seek sets the absolute position in seconds.
func (s *Session) Seek(seconds float64) {
	if s.media.CurrentSource() == "" || math.IsNaN(seconds) {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	s.try("seek", s.media.SetCurrentTime(seconds))
}

// SetPlaybackRate applies rate immediately and keeps it for later tracks.
// Non-positive rates are ignored.
func (s *Session) SetPlaybackRate(rate float64) {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return
	}
	s.try("set playback rate", s.media.SetPlaybackRate(rate))
	s.dispatch(Action{Kind: ActionSetPlaybackRate, Rate: rate})
}

// ToggleMute flips the muted flag and applies it to the media.
func (s *Session) ToggleMute() {
	next := s.dispatch(Action{Kind: ActionToggleMute})
	s.try("set muted", s.media.SetMuted(next.Muted))
}

// IsPlaying reports whether the session is playing and, when track is given,
// whether that track is the bound one.
func (s *Session) IsPlaying(track *TrackRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Playing {
		return false
	}
	if track == nil {
		return true
	}
	return s.state.ActiveTrack.SameSource(track)
}

// PlaybackRate returns the session's current rate.
func (s *Session) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PlaybackRate
}

// Muted returns the session's muted flag.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Muted
}

func (s *Session) handleMediaEvent(evt MediaEvent) {
	switch evt.Kind {
	case EventPlay:
		s.dispatch(Action{Kind: ActionPlay})
	case EventPause, EventEnded:
		s.dispatch(Action{Kind: ActionPause})
	case EventTimeUpdate:
		s.dispatch(Action{Kind: ActionSetCurrentTime, Seconds: wholeSeconds(evt.Value)})
	case EventDurationChange:
		s.dispatch(Action{Kind: ActionSetDuration, Seconds: wholeSeconds(evt.Value)})
	}
}

// dispatch reduces action into the session state and fans the result out to
// observers. A dispatch issued from inside an observer is queued and
// delivered after the current one, which keeps delivery in order without
// holding the lock during callbacks.
func (s *Session) dispatch(action Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, action)
	next := copyState(s.state)
	if len(s.observers) == 0 {
		s.mu.Unlock()
		return next
	}
	s.pending = append(s.pending, next)
	if s.draining {
		s.mu.Unlock()
		return next
	}
	s.draining = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		observers := append([]observer(nil), s.observers...)
		s.mu.Unlock()
		for _, st := range batch {
			for _, obs := range observers {
				obs.fn(copyState(st))
			}
		}
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
	return next
}

func (s *Session) try(op string, err error) {
	if err != nil {
		s.logger.Debug("media operation failed", logging.String("op", op), logging.Error(err))
	}
}

func copyState(st State) State {
	if st.ActiveTrack != nil {
		track := *st.ActiveTrack
		st.ActiveTrack = &track
	}
	return st
}
