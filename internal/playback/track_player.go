package playback

// TrackPlayer is a Session view bound to one track: Play, Toggle and Playing
// act on that track, everything else passes through to the session.
type TrackPlayer struct {
	session *Session
	track   *TrackRef
}

// For returns a view of s bound to track. A nil track yields a view that
// resumes or toggles whatever is bound.
func (s *Session) For(track *TrackRef) *TrackPlayer {
	var bound *TrackRef
	if track != nil {
		copied := *track
		bound = &copied
	}
	return &TrackPlayer{session: s, track: bound}
}

// Track returns the bound track, or nil.
func (p *TrackPlayer) Track() *TrackRef {
	if p.track == nil {
		return nil
	}
	copied := *p.track
	return &copied
}

// Session returns the underlying session.
func (p *TrackPlayer) Session() *Session { return p.session }

func (p *TrackPlayer) Play()                           { p.session.Play(p.track) }
func (p *TrackPlayer) Toggle()                         { p.session.Toggle(p.track) }
func (p *TrackPlayer) Playing() bool                   { return p.session.IsPlaying(p.track) }
func (p *TrackPlayer) Pause()                          { p.session.Pause() }
func (p *TrackPlayer) SeekBy(delta float64)            { p.session.SeekBy(delta) }
func (p *TrackPlayer) Seek(seconds float64)            { p.session.Seek(seconds) }
func (p *TrackPlayer) SetPlaybackRate(rate float64)    { p.session.SetPlaybackRate(rate) }
func (p *TrackPlayer) ToggleMute()                     { p.session.ToggleMute() }
func (p *TrackPlayer) PlaybackRate() float64           { return p.session.PlaybackRate() }
func (p *TrackPlayer) Muted() bool                     { return p.session.Muted() }
func (p *TrackPlayer) Snapshot() State                 { return p.session.Snapshot() }
func (p *TrackPlayer) Subscribe(fn func(State)) func() { return p.session.Subscribe(fn) }
