package playback_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"podvoice/internal/playback"
)

var (
	episodeA = &playback.TrackRef{ID: 1, Source: "https://cdn.example/a.mp3", MIMEType: "audio/mpeg", Title: "A"}
	episodeB = &playback.TrackRef{ID: 2, Source: "https://cdn.example/b.mp3", MIMEType: "audio/mpeg", Title: "B"}
)

func TestInitialState(t *testing.T) {
	s := playback.NewSession(newFakeMedia())
	st := s.Snapshot()
	if st.Playing || st.Muted || st.CurrentTime != 0 || st.Duration != 0 || st.ActiveTrack != nil {
		t.Fatalf("unexpected initial state %+v", st)
	}
	if st.PlaybackRate != 1 {
		t.Fatalf("expected rate 1, got %v", st.PlaybackRate)
	}
}

func TestPlayBindsAndPlays(t *testing.T) {
	media := newFakeMedia()
	media.durations[episodeA.Source] = 1800.7
	s := playback.NewSession(media)

	s.Play(episodeA)

	st := s.Snapshot()
	if !st.Playing {
		t.Fatal("expected playing after media play event")
	}
	if st.ActiveTrack == nil || st.ActiveTrack.Source != episodeA.Source {
		t.Fatalf("unexpected active track %+v", st.ActiveTrack)
	}
	if st.Duration != 1800 {
		t.Fatalf("expected truncated duration 1800, got %d", st.Duration)
	}
	if media.CurrentSource() != episodeA.Source {
		t.Fatalf("media bound to %q", media.CurrentSource())
	}
}

func TestPlaySameTrackDoesNotRebind(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)
	s.Play(episodeA)
	s.SeekBy(42)
	s.Pause()
	s.Play(episodeA)

	if got := media.loads(); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
	if got := s.Snapshot().CurrentTime; got != 42 {
		t.Fatalf("expected position kept at 42, got %d", got)
	}
}

func TestSwitchTrackPreservesRateAndMute(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)
	s.Play(episodeA)
	s.SetPlaybackRate(1.5)
	s.ToggleMute()
	s.SeekBy(300)

	s.Play(episodeB)

	st := s.Snapshot()
	if st.ActiveTrack.Source != episodeB.Source {
		t.Fatalf("expected B active, got %+v", st.ActiveTrack)
	}
	if st.CurrentTime != 0 {
		t.Fatalf("expected position reset, got %d", st.CurrentTime)
	}
	if media.PlaybackRate() != 1.5 || st.PlaybackRate != 1.5 {
		t.Fatalf("expected rate 1.5 preserved, media=%v state=%v", media.PlaybackRate(), st.PlaybackRate)
	}
	if !media.Muted() || !st.Muted {
		t.Fatal("expected mute preserved")
	}
	if !st.Playing {
		t.Fatal("expected B playing")
	}
}

func TestPlayWithoutTrackNothingBound(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)
	s.Play(nil)
	if s.Snapshot().Playing {
		t.Fatal("expected no playback without a bound source")
	}
	for _, c := range media.calls {
		if c == "play" {
			t.Fatal("media play should not be requested")
		}
	}
}

func TestPlayingFollowsMediaNotRequest(t *testing.T) {
	media := newFakeMedia()
	media.playErr = errors.New("autoplay blocked")
	s := playback.NewSession(media)

	s.Play(episodeA)

	if s.Snapshot().Playing {
		t.Fatal("playing must stay false when the media never confirms")
	}
}

func TestLoadFailureIsSwallowed(t *testing.T) {
	media := newFakeMedia()
	media.loadErr = errors.New("network")
	s := playback.NewSession(media)
	s.Play(episodeA)
	st := s.Snapshot()
	if st.Playing {
		t.Fatal("expected not playing")
	}
}

func TestLoadFailureKeepsPreviousTrack(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)
	s.Play(episodeA)

	media.loadErr = errors.New("network")
	s.Play(episodeB)

	st := s.Snapshot()
	if st.ActiveTrack == nil || st.ActiveTrack.Source != episodeA.Source {
		t.Fatalf("expected A to stay active, got %+v", st.ActiveTrack)
	}
	if media.CurrentSource() != episodeA.Source {
		t.Fatalf("media bound to %q", media.CurrentSource())
	}
	if !s.IsPlaying(episodeA) || s.IsPlaying(episodeB) {
		t.Fatal("expected A still playing and B not")
	}

	s.Toggle(episodeB)
	if !s.IsPlaying(episodeA) {
		t.Fatal("toggling an unloadable track must not pause the bound one")
	}
}

func TestToggleIsPerTrack(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)

	s.Toggle(episodeA)
	if !s.IsPlaying(episodeA) {
		t.Fatal("expected A playing")
	}
	if s.IsPlaying(episodeB) {
		t.Fatal("B is not playing")
	}

	s.Toggle(episodeB)
	if !s.IsPlaying(episodeB) || s.IsPlaying(episodeA) {
		t.Fatal("expected B to replace A")
	}

	s.Toggle(episodeB)
	if s.IsPlaying(nil) {
		t.Fatal("expected paused after toggling the playing track")
	}
	if s.Snapshot().ActiveTrack.Source != episodeB.Source {
		t.Fatal("pause must keep the active track")
	}
}

func TestSeekByFloorsAtZeroAndClamps(t *testing.T) {
	media := newFakeMedia()
	media.durations[episodeA.Source] = 100
	s := playback.NewSession(media)
	s.Play(episodeA)

	s.SeekBy(-10)
	if got := s.Snapshot().CurrentTime; got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	s.SeekBy(95)
	s.SeekBy(10)
	if got := s.Snapshot().CurrentTime; got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	s.Seek(-5)
	if got := media.CurrentTime(); got != 0 {
		t.Fatalf("expected absolute seek floored, got %v", got)
	}
}

func TestSeekByRoundTrip(t *testing.T) {
	media := newFakeMedia()
	media.durations[episodeA.Source] = 3600
	s := playback.NewSession(media)
	s.Play(episodeA)
	s.Seek(120)

	for _, delta := range []float64{10, 30, 45} {
		before := s.Snapshot().CurrentTime
		s.SeekBy(delta)
		s.SeekBy(-delta)
		if got := s.Snapshot().CurrentTime; got != before {
			t.Fatalf("seekBy(%v) then seekBy(-%v): expected %d, got %d", delta, delta, before, got)
		}
	}
}

func TestSetPlaybackRateIgnoresNonPositive(t *testing.T) {
	s := playback.NewSession(newFakeMedia())
	s.SetPlaybackRate(0)
	s.SetPlaybackRate(-1)
	if got := s.PlaybackRate(); got != 1 {
		t.Fatalf("expected rate 1, got %v", got)
	}
	s.SetPlaybackRate(2)
	s.SetPlaybackRate(2)
	if got := s.PlaybackRate(); got != 2 {
		t.Fatalf("expected rate 2, got %v", got)
	}
}

func TestToggleMuteTwiceRestores(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)
	s.ToggleMute()
	if !s.Muted() || !media.Muted() {
		t.Fatal("expected muted")
	}
	s.ToggleMute()
	if s.Muted() || media.Muted() {
		t.Fatal("expected unmuted")
	}
}

func TestEndedPausesAndKeepsTrack(t *testing.T) {
	media := newFakeMedia()
	media.durations[episodeA.Source] = 60
	s := playback.NewSession(media)
	s.Play(episodeA)
	media.finish()

	st := s.Snapshot()
	if st.Playing {
		t.Fatal("expected not playing after end")
	}
	if st.ActiveTrack == nil || st.ActiveTrack.Source != episodeA.Source {
		t.Fatal("expected track kept after end")
	}
}

func TestObserversSeeEveryChangeInOrder(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)

	var mu sync.Mutex
	var first, second []bool
	unsubscribe := s.Subscribe(func(st playback.State) {
		mu.Lock()
		first = append(first, st.Playing)
		mu.Unlock()
	})
	s.Subscribe(func(st playback.State) {
		mu.Lock()
		second = append(second, st.Playing)
		mu.Unlock()
	})

	s.Play(episodeA)
	s.Pause()

	mu.Lock()
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("observers diverged: %v vs %v", first, second)
	}
	if !first[len(first)-2] || first[len(first)-1] {
		t.Fatalf("expected play then pause at the tail, got %v", first)
	}
	seen := len(first)
	mu.Unlock()

	unsubscribe()
	s.ToggleMute()
	mu.Lock()
	defer mu.Unlock()
	if len(first) != seen {
		t.Fatal("unsubscribed observer still notified")
	}
	if len(second) != seen+1 {
		t.Fatalf("expected remaining observer notified once more, got %d", len(second)-seen)
	}
}

func TestObserverMayDispatch(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)
	var states []playback.State
	s.Subscribe(func(st playback.State) {
		states = append(states, st)
		if st.Playing && !st.Muted {
			s.ToggleMute()
		}
	})
	s.Play(episodeA)
	if !s.Muted() {
		t.Fatal("expected nested toggle applied")
	}
	last := states[len(states)-1]
	if !last.Muted || !last.Playing {
		t.Fatalf("expected last delivered state muted+playing, got %+v", last)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := playback.NewSession(newFakeMedia())
	s.Play(episodeA)
	st := s.Snapshot()
	st.ActiveTrack.Title = "mutated"
	if s.Snapshot().ActiveTrack.Title != "A" {
		t.Fatal("snapshot leaked internal state")
	}
}

func TestTrackPlayer(t *testing.T) {
	media := newFakeMedia()
	s := playback.NewSession(media)
	a := s.For(episodeA)
	b := s.For(episodeB)

	a.Toggle()
	if !a.Playing() || b.Playing() {
		t.Fatal("expected only A playing")
	}
	b.Play()
	if a.Playing() || !b.Playing() {
		t.Fatal("expected only B playing")
	}
	b.SetPlaybackRate(1.25)
	if a.PlaybackRate() != 1.25 {
		t.Fatal("rate is session-wide")
	}
}

func TestSessionContext(t *testing.T) {
	s := playback.NewSession(newFakeMedia())
	ctx := playback.WithSession(context.Background(), s)
	got, ok := playback.FromContext(ctx)
	if !ok || got != s {
		t.Fatal("expected session from context")
	}
	if _, ok := playback.FromContext(context.Background()); ok {
		t.Fatal("expected no session in empty context")
	}
}
