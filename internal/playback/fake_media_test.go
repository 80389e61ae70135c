package playback_test

import (
	"errors"
	"sync"

	"podvoice/internal/playback"
)

// fakeMedia mimics an HTML audio element: play/pause report back through the
// listener, seeks clamp to the loaded duration.
type fakeMedia struct {
	mu        sync.Mutex
	listener  playback.MediaListener
	source    string
	mime      string
	position  float64
	duration  float64
	rate      float64
	muted     bool
	playing   bool
	calls     []string
	loadErr   error
	playErr   error
	durations map[string]float64
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{rate: 1, durations: map[string]float64{}}
}

func (m *fakeMedia) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *fakeMedia) emit(kind playback.MediaEventKind, value float64) {
	m.mu.Lock()
	l := m.listener
	m.mu.Unlock()
	if l != nil {
		l(playback.MediaEvent{Kind: kind, Value: value})
	}
}

func (m *fakeMedia) Load(source, mimeType string) error {
	m.record("load " + source)
	if m.loadErr != nil {
		return m.loadErr
	}
	m.mu.Lock()
	wasPlaying := m.playing
	m.source = source
	m.mime = mimeType
	m.position = 0
	m.duration = m.durations[source]
	m.rate = 1
	m.playing = false
	m.mu.Unlock()
	if wasPlaying {
		m.emit(playback.EventPause, 0)
	}
	return nil
}

func (m *fakeMedia) Play() error {
	m.record("play")
	if m.playErr != nil {
		return m.playErr
	}
	m.mu.Lock()
	if m.source == "" {
		m.mu.Unlock()
		return errors.New("no source")
	}
	already := m.playing
	m.playing = true
	m.mu.Unlock()
	if !already {
		m.emit(playback.EventPlay, 0)
	}
	return nil
}

func (m *fakeMedia) Pause() error {
	m.record("pause")
	m.mu.Lock()
	was := m.playing
	m.playing = false
	m.mu.Unlock()
	if was {
		m.emit(playback.EventPause, 0)
	}
	return nil
}

func (m *fakeMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *fakeMedia) SetCurrentTime(t float64) error {
	m.mu.Lock()
	if m.duration > 0 && t > m.duration {
		t = m.duration
	}
	m.position = t
	m.mu.Unlock()
	m.emit(playback.EventTimeUpdate, t)
	return nil
}

func (m *fakeMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *fakeMedia) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *fakeMedia) SetPlaybackRate(rate float64) error {
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *fakeMedia) SetMuted(muted bool) error {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) CurrentSource() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *fakeMedia) SetListener(l playback.MediaListener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

func (m *fakeMedia) finish() {
	m.mu.Lock()
	m.playing = false
	m.position = m.duration
	m.mu.Unlock()
	m.emit(playback.EventEnded, 0)
}

func (m *fakeMedia) loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if len(c) > 5 && c[:5] == "load " {
			n++
		}
	}
	return n
}
