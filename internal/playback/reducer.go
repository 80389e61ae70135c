package playback

// ActionKind tags an Action.
type ActionKind int

const (
	ActionSetTrack ActionKind = iota
	ActionPlay
	ActionPause
	ActionToggleMute
	ActionSetCurrentTime
	ActionSetDuration
	ActionSetPlaybackRate
)

func (k ActionKind) String() string {
	switch k {
	case ActionSetTrack:
		return "set_track"
	case ActionPlay:
		return "play"
	case ActionPause:
		return "pause"
	case ActionToggleMute:
		return "toggle_mute"
	case ActionSetCurrentTime:
		return "set_current_time"
	case ActionSetDuration:
		return "set_duration"
	case ActionSetPlaybackRate:
		return "set_playback_rate"
	default:
		return "unknown"
	}
}

// Action is a state transition request. Only the payload field matching Kind
// is read.
type Action struct {
	Kind    ActionKind
	Track   *TrackRef
	Seconds int
	Rate    float64
}

// Reduce applies action to state and returns the next state. It is pure: the
// input state is not modified.
func Reduce(state State, action Action) State {
	switch action.Kind {
	case ActionSetTrack:
		if action.Track != nil {
			track := *action.Track
			state.ActiveTrack = &track
		}
	case ActionPlay:
		state.Playing = true
	case ActionPause:
		state.Playing = false
	case ActionToggleMute:
		state.Muted = !state.Muted
	case ActionSetCurrentTime:
		if action.Seconds < 0 {
			action.Seconds = 0
		}
		state.CurrentTime = action.Seconds
	case ActionSetDuration:
		if action.Seconds < 0 {
			action.Seconds = 0
		}
		state.Duration = action.Seconds
	case ActionSetPlaybackRate:
		if action.Rate > 0 {
			state.PlaybackRate = action.Rate
		}
	}
	return state
}
