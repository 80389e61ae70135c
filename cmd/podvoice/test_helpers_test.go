package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"podvoice/internal/config"
	"podvoice/internal/playback"
	"podvoice/internal/podcastindex"
	"podvoice/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	directory  *testsupport.FakeDirectory
	media      *instantMedia
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Speech.Provider = "none"
	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(testsupport.BaseDir(cfg), "config.toml"),
		directory:  testsupport.NewFakeDirectory(),
		media:      &instantMedia{length: 3},
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) options() []contextOption {
	return []contextOption{func(c *commandContext) {
		c.newDirectory = func(*config.Config, *slog.Logger) (podcastindex.Directory, error) {
			return e.directory, nil
		}
		c.newMedia = func(*config.Config, *slog.Logger) playerMedia {
			return e.media
		}
	}}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(env.options()...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}

// instantMedia loads immediately and plays straight through to the end.
type instantMedia struct {
	mu       sync.Mutex
	listener playback.MediaListener
	source   string
	mime     string
	length   float64
	position float64
	rate     float64
	muted    bool
	playing  bool
	closed   bool
}

func (m *instantMedia) emit(kind playback.MediaEventKind, value float64) {
	m.mu.Lock()
	l := m.listener
	m.mu.Unlock()
	if l != nil {
		l(playback.MediaEvent{Kind: kind, Value: value})
	}
}

func (m *instantMedia) Load(source, mimeType string) error {
	m.mu.Lock()
	m.source, m.mime, m.position = source, mimeType, 0
	m.mu.Unlock()
	m.emit(playback.EventDurationChange, m.length)
	return nil
}

func (m *instantMedia) Play() error {
	m.mu.Lock()
	m.playing = true
	m.mu.Unlock()
	m.emit(playback.EventPlay, 0)
	go func() {
		m.mu.Lock()
		m.position = m.length
		m.playing = false
		m.mu.Unlock()
		m.emit(playback.EventTimeUpdate, m.length)
		m.emit(playback.EventEnded, 0)
	}()
	return nil
}

func (m *instantMedia) Pause() error {
	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
	return nil
}

func (m *instantMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *instantMedia) SetCurrentTime(seconds float64) error {
	m.mu.Lock()
	m.position = seconds
	m.mu.Unlock()
	return nil
}

func (m *instantMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.length
}

func (m *instantMedia) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *instantMedia) SetPlaybackRate(rate float64) error {
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
	return nil
}

func (m *instantMedia) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *instantMedia) SetMuted(muted bool) error {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	return nil
}

func (m *instantMedia) CurrentSource() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *instantMedia) SetListener(l playback.MediaListener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

func (m *instantMedia) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *instantMedia) loaded() (string, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source, m.mime, m.closed
}

func strconvID(id int64) string {
	return strconv.FormatInt(id, 10)
}
