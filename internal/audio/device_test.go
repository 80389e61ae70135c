package audio_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"podvoice/internal/audio"
	"podvoice/internal/playback"
)

// pullOutput stands in for the sound card: tests pull samples explicitly.
type pullOutput struct {
	mu      sync.Mutex
	stream  beep.Streamer
	started int
	stopped bool
}

func (o *pullOutput) Start(_ beep.SampleRate, s beep.Streamer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
	if o.stream == nil {
		o.stream = s
	}
	return nil
}

func (o *pullOutput) Lock()   { o.mu.Lock() }
func (o *pullOutput) Unlock() { o.mu.Unlock() }

func (o *pullOutput) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
}

func (o *pullOutput) Pull(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stream == nil {
		return
	}
	buf := make([][2]float64, 512)
	for n > 0 {
		k := min(n, len(buf))
		o.stream.Stream(buf[:k])
		n -= k
	}
}

func writeWAV(t *testing.T, seconds int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Silence(format.SampleRate.N(time.Duration(seconds)*time.Second)), format); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	return path
}

type eventLog struct {
	ch chan playback.MediaEvent
}

func newDevice(t *testing.T) (*audio.Device, *pullOutput, *eventLog) {
	t.Helper()
	out := &pullOutput{}
	dev := audio.NewDevice(audio.WithOutput(out), audio.WithTickInterval(5*time.Millisecond))
	t.Cleanup(func() { _ = dev.Close() })
	log := &eventLog{ch: make(chan playback.MediaEvent, 1024)}
	dev.SetListener(func(evt playback.MediaEvent) { log.ch <- evt })
	return dev, out, log
}

func (l *eventLog) waitFor(t *testing.T, kind playback.MediaEventKind) playback.MediaEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt := <-l.ch:
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestDevicePlaysUntilEnded(t *testing.T) {
	dev, out, log := newDevice(t)
	path := writeWAV(t, 1)

	if err := dev.Load(path, "audio/wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Requested before the decoder is ready; honoured once it is.
	if err := dev.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	ready := log.waitFor(t, playback.EventDurationChange)
	if ready.Value < 0.99 || ready.Value > 1.01 {
		t.Fatalf("unexpected duration %v", ready.Value)
	}
	log.waitFor(t, playback.EventPlay)
	if dev.CurrentSource() != path {
		t.Fatalf("unexpected source %q", dev.CurrentSource())
	}

	out.Pull(audio.OutputRate.N(2 * time.Second))
	log.waitFor(t, playback.EventEnded)
	out.Lock()
	started := out.started
	out.Unlock()
	if started != 1 {
		t.Fatalf("expected output started once, got %d", started)
	}
}

func TestDeviceSeekClampsAndPauses(t *testing.T) {
	dev, _, log := newDevice(t)
	if err := dev.Load(writeWAV(t, 1), "audio/x-wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	log.waitFor(t, playback.EventDurationChange)

	if err := dev.SetCurrentTime(0.5); err != nil {
		t.Fatalf("SetCurrentTime: %v", err)
	}
	if got := dev.CurrentTime(); got < 0.49 || got > 0.51 {
		t.Fatalf("expected position 0.5, got %v", got)
	}
	if err := dev.SetCurrentTime(30); err != nil {
		t.Fatalf("SetCurrentTime: %v", err)
	}
	if got := dev.CurrentTime(); got > dev.Duration() {
		t.Fatalf("expected clamp to duration %v, got %v", dev.Duration(), got)
	}
	if err := dev.SetCurrentTime(-3); err != nil {
		t.Fatalf("SetCurrentTime: %v", err)
	}
	if got := dev.CurrentTime(); got != 0 {
		t.Fatalf("expected floor at 0, got %v", got)
	}

	if err := dev.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, playback.EventPlay)
	if err := dev.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	log.waitFor(t, playback.EventPause)
}

func TestDeviceRateAndMute(t *testing.T) {
	dev, _, log := newDevice(t)
	if err := dev.Load(writeWAV(t, 1), "audio/wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	log.waitFor(t, playback.EventDurationChange)

	if err := dev.SetPlaybackRate(1.5); err != nil {
		t.Fatalf("SetPlaybackRate: %v", err)
	}
	if dev.PlaybackRate() != 1.5 {
		t.Fatalf("expected rate 1.5, got %v", dev.PlaybackRate())
	}
	if err := dev.SetPlaybackRate(0); err == nil {
		t.Fatal("expected zero rate to be rejected")
	}
	if err := dev.SetMuted(true); err != nil || !dev.Muted() {
		t.Fatalf("expected muted, err=%v", err)
	}
}

func TestDeviceRejectsUnknownMedia(t *testing.T) {
	dev, _, _ := newDevice(t)
	if err := dev.Load("/tmp/episode.ogg", "audio/ogg"); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if err := dev.Play(); err == nil {
		t.Fatal("expected play without source to fail")
	}
}

func TestDeviceDrivesSession(t *testing.T) {
	dev, _, _ := newDevice(t)
	session := playback.NewSession(dev)
	states := make(chan playback.State, 64)
	session.Subscribe(func(s playback.State) { states <- s })

	path := writeWAV(t, 2)
	session.Play(&playback.TrackRef{ID: 1, Source: path, MIMEType: "audio/wav", Title: "Pilot"})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-states:
			if s.Playing && s.Duration == 2 {
				return
			}
		case <-deadline:
			t.Fatalf("session never reached playing with duration, last %+v", session.Snapshot())
		}
	}
}

func TestDeviceLoadWhilePlayingReportsPause(t *testing.T) {
	dev, _, log := newDevice(t)
	if err := dev.Load(writeWAV(t, 2), "audio/wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := dev.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, playback.EventPlay)

	missing := filepath.Join(t.TempDir(), "missing.wav")
	if err := dev.Load(missing, "audio/wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	log.waitFor(t, playback.EventPause)
	if dev.CurrentSource() != missing {
		t.Fatalf("unexpected source %q", dev.CurrentSource())
	}
}

func TestDeviceSwitchToBrokenTrackStopsSession(t *testing.T) {
	dev, _, _ := newDevice(t)
	session := playback.NewSession(dev)
	states := make(chan playback.State, 1024)
	session.Subscribe(func(s playback.State) { states <- s })

	first := &playback.TrackRef{ID: 1, Source: writeWAV(t, 2), MIMEType: "audio/wav"}
	broken := &playback.TrackRef{ID: 2, Source: filepath.Join(t.TempDir(), "gone.wav"), MIMEType: "audio/wav"}

	session.Play(first)
	waitState(t, session, states, func(s playback.State) bool { return s.Playing })

	session.Play(broken)
	waitState(t, session, states, func(s playback.State) bool {
		return !s.Playing && s.ActiveTrack != nil && s.ActiveTrack.Source == broken.Source
	})
}

func waitState(t *testing.T, session *playback.Session, states <-chan playback.State, ok func(playback.State) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-states:
			if ok(s) {
				return
			}
		case <-deadline:
			t.Fatalf("state never matched, last %+v", session.Snapshot())
		}
	}
}
