package playback

// MediaEventKind enumerates the callbacks a Media emits.
type MediaEventKind int

const (
	EventPlay MediaEventKind = iota
	EventPause
	EventTimeUpdate
	EventDurationChange
	EventEnded
)

func (k MediaEventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventTimeUpdate:
		return "timeupdate"
	case EventDurationChange:
		return "durationchange"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MediaEvent is a callback from the media resource. Value carries the
// position for EventTimeUpdate and the length for EventDurationChange, both
// in fractional seconds.
type MediaEvent struct {
	Kind  MediaEventKind
	Value float64
}

// MediaListener receives media callbacks.
type MediaListener func(MediaEvent)

// Media is the single underlying playback resource a Session drives. Load is
// allowed to finish asynchronously; readiness is announced with
// EventDurationChange and actual playback with EventPlay.
type Media interface {
	Load(source, mimeType string) error
	Play() error
	Pause() error
	CurrentTime() float64
	SetCurrentTime(seconds float64) error
	Duration() float64
	PlaybackRate() float64
	SetPlaybackRate(rate float64) error
	Muted() bool
	SetMuted(muted bool) error
	// CurrentSource returns the source bound by the last Load, or "".
	CurrentSource() string
	// SetListener registers the single receiver of media events.
	SetListener(listener MediaListener)
}
