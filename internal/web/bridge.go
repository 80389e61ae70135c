package web

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"podvoice/internal/playback"
	"podvoice/internal/voice"
)

// Messages sent to the browser.
type mediaMessage struct {
	Type  string  `json:"type"`
	Op    string  `json:"op"`
	Src   string  `json:"src,omitempty"`
	MIME  string  `json:"mime,omitempty"`
	Value float64 `json:"value"`
}

type recognizerMessage struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

type stateMessage struct {
	Type  string         `json:"type"`
	State playback.State `json:"state"`
}

type voiceMessage struct {
	Type      string `json:"type"`
	Listening bool   `json:"listening"`
	Supported bool   `json:"supported"`
	Command   string `json:"command,omitempty"`
}

// inboundMessage is any message the browser sends.
type inboundMessage struct {
	Type    string             `json:"type"`
	Event   string             `json:"event,omitempty"`
	Value   float64            `json:"value,omitempty"`
	Results []voice.Result     `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
	Action  string             `json:"action,omitempty"`
	Track   *playback.TrackRef `json:"track,omitempty"`
}

// BrowserMedia drives a remote audio element. Commands are forwarded to the
// browser through send; getters return the values the element last reported,
// so readiness and playing state follow the browser, not the request.
type BrowserMedia struct {
	send func(any)

	mu       sync.Mutex
	source   string
	mimeType string
	position float64
	duration float64
	rate     float64
	muted    bool
	listener playback.MediaListener
}

var _ playback.Media = (*BrowserMedia)(nil)

// NewBrowserMedia returns media that forwards commands through send.
func NewBrowserMedia(send func(any)) *BrowserMedia {
	return &BrowserMedia{send: send, rate: playback.DefaultPlaybackRate}
}

func (m *BrowserMedia) command(op string, value float64) {
	m.send(mediaMessage{Type: "media", Op: op, Value: value})
}

func (m *BrowserMedia) Load(source, mimeType string) error {
	if source == "" {
		return errors.New("browser media: empty source")
	}
	m.mu.Lock()
	m.source = source
	m.mimeType = mimeType
	m.position = 0
	m.duration = 0
	m.mu.Unlock()
	m.send(mediaMessage{Type: "media", Op: "load", Src: source, MIME: mimeType})
	return nil
}

func (m *BrowserMedia) Play() error {
	if m.CurrentSource() == "" {
		return errors.New("browser media: nothing loaded")
	}
	m.command("play", 0)
	return nil
}

func (m *BrowserMedia) Pause() error {
	m.command("pause", 0)
	return nil
}

func (m *BrowserMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// SetCurrentTime clamps to [0, duration] once the duration is known.
func (m *BrowserMedia) SetCurrentTime(seconds float64) error {
	if math.IsNaN(seconds) {
		return errors.New("browser media: invalid position")
	}
	m.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	if m.duration > 0 && seconds > m.duration {
		seconds = m.duration
	}
	m.position = seconds
	m.mu.Unlock()
	m.command("seek", seconds)
	return nil
}

func (m *BrowserMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *BrowserMedia) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *BrowserMedia) SetPlaybackRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("browser media: invalid playback rate %v", rate)
	}
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
	m.command("rate", rate)
	return nil
}

func (m *BrowserMedia) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *BrowserMedia) SetMuted(muted bool) error {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	value := 0.0
	if muted {
		value = 1
	}
	m.command("mute", value)
	return nil
}

func (m *BrowserMedia) CurrentSource() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *BrowserMedia) SetListener(listener playback.MediaListener) {
	m.mu.Lock()
	m.listener = listener
	m.mu.Unlock()
}

// Report applies an event the browser's element emitted and forwards it to
// the listener. Unknown event names are ignored.
func (m *BrowserMedia) Report(event string, value float64) {
	var kind playback.MediaEventKind
	switch event {
	case "play":
		kind = playback.EventPlay
	case "pause":
		kind = playback.EventPause
	case "timeupdate":
		kind = playback.EventTimeUpdate
	case "durationchange":
		kind = playback.EventDurationChange
	case "ended":
		kind = playback.EventEnded
	default:
		return
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		value = 0
	}
	m.mu.Lock()
	switch kind {
	case playback.EventTimeUpdate:
		m.position = value
	case playback.EventDurationChange:
		m.duration = value
	case playback.EventEnded:
		if m.duration > 0 {
			m.position = m.duration
		}
	}
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener(playback.MediaEvent{Kind: kind, Value: value})
	}
}

// browserSpeech relays the browser's Web Speech API. One exists per
// connection; the recognizer it hands out forwards start and stop to the
// browser and the browser's events come back through Report.
type browserSpeech struct {
	send func(any)

	mu          sync.Mutex
	unsupported bool
	sink        voice.EventSink
}

func newBrowserSpeech(send func(any)) *browserSpeech {
	return &browserSpeech{send: send}
}

// Factory returns ErrUnsupported once the browser has said it has no speech
// recognition.
func (b *browserSpeech) Factory() voice.Factory {
	return func(_ voice.RecognizerOptions, sink voice.EventSink) (voice.Recognizer, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.unsupported {
			return nil, voice.ErrUnsupported
		}
		b.sink = sink
		return browserRecognizer{send: b.send}, nil
	}
}

func (b *browserSpeech) Supported() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.unsupported
}

// Report delivers a browser speech event. It returns true when the event
// marked the browser as unsupported.
func (b *browserSpeech) Report(msg inboundMessage) bool {
	b.mu.Lock()
	if msg.Event == "unsupported" {
		changed := !b.unsupported
		b.unsupported = true
		b.sink = nil
		b.mu.Unlock()
		return changed
	}
	sink := b.sink
	b.mu.Unlock()
	if sink == nil {
		return false
	}
	switch msg.Event {
	case "result":
		sink.OnResult(voice.ResultEvent{Results: msg.Results})
	case "error":
		code := msg.Error
		if code == "" {
			code = voice.ErrorNetwork
		}
		sink.OnError(voice.RecognitionError{Code: code})
	case "end":
		sink.OnEnd()
	}
	return false
}

type browserRecognizer struct {
	send func(any)
}

func (r browserRecognizer) Start() error {
	r.send(recognizerMessage{Type: "recognizer", Op: "start"})
	return nil
}

func (r browserRecognizer) Stop() error {
	r.send(recognizerMessage{Type: "recognizer", Op: "stop"})
	return nil
}
