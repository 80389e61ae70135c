package audio

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"

	"podvoice/internal/logging"
	"podvoice/internal/playback"
	"podvoice/internal/services"
)

const (
	component = "audio"

	// OutputRate is the speaker sample rate; every source is resampled to it.
	OutputRate = beep.SampleRate(44100)

	defaultTickInterval = 250 * time.Millisecond
	resampleQuality     = 4
)

// chain is the decoder plus its control stages for one loaded source. Its
// fields are read by the audio thread and changed only under the output lock.
type chain struct {
	stream    beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	volume    *effects.Volume
	ctrl      *beep.Ctrl
	ended     bool
}

func (c *chain) position() float64 {
	return c.format.SampleRate.D(c.stream.Position()).Seconds()
}

func (c *chain) length() float64 {
	return c.format.SampleRate.D(c.stream.Len()).Seconds()
}

func (c *chain) baseRatio() float64 {
	return float64(c.format.SampleRate) / float64(OutputRate)
}

// mixer is the single streamer handed to the output. It plays the current
// chain and pads everything else with silence.
type mixer struct {
	d *Device
}

func (m mixer) Stream(samples [][2]float64) (int, bool) {
	c := m.d.chain
	filled := 0
	if c != nil && !c.ended && !c.ctrl.Paused {
		n, ok := c.ctrl.Stream(samples)
		filled = n
		if !ok || (n < len(samples) && c.stream.Position() >= c.stream.Len()) {
			c.ended = true
			c.ctrl.Paused = true
		}
	}
	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (mixer) Err() error { return nil }

// Device is a playback.Media backed by the local sound card.
type Device struct {
	output     Output
	httpClient *http.Client
	cacheDir   string
	logger     *slog.Logger
	tick       time.Duration
	volumeDB   float64

	mu          sync.Mutex
	source      string
	loadGen     uint64
	wantPlay    bool
	pendingSeek float64
	duration    float64
	rate        float64
	muted       bool
	started     bool
	endReported bool
	closed      bool
	cancelLoad  context.CancelFunc

	// chain is guarded by the output lock.
	chain *chain

	// Events queue without bound so emitters holding mu never block on the
	// listener.
	queueMu  sync.Mutex
	listener playback.MediaListener
	queue    []playback.MediaEvent
	wake     chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

var _ playback.Media = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithOutput replaces the speaker.
func WithOutput(output Output) Option {
	return func(d *Device) {
		if output != nil {
			d.output = output
		}
	}
}

// WithHTTPClient sets the client used to download remote sources.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Device) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithCacheDir sets where remote sources are downloaded.
func WithCacheDir(dir string) Option {
	return func(d *Device) {
		d.cacheDir = dir
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTickInterval sets how often time updates are emitted while playing.
func WithTickInterval(interval time.Duration) Option {
	return func(d *Device) {
		if interval > 0 {
			d.tick = interval
		}
	}
}

// WithVolume sets the gain in decibels-like beep units (0 is unchanged).
func WithVolume(volume float64) Option {
	return func(d *Device) {
		d.volumeDB = volume
	}
}

// NewDevice creates an idle device. Call Close to release the speaker.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		output:     NewSpeaker(),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logging.NewNop(),
		tick:       defaultTickInterval,
		rate:       1,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, component)
	d.wg.Add(2)
	go d.dispatchLoop()
	go d.tickLoop()
	return d
}

// SetListener registers the receiver of media events.
func (d *Device) SetListener(listener playback.MediaListener) {
	d.queueMu.Lock()
	d.listener = listener
	d.queueMu.Unlock()
}

func (d *Device) emit(kind playback.MediaEventKind, value float64) {
	d.queueMu.Lock()
	d.queue = append(d.queue, playback.MediaEvent{Kind: kind, Value: value})
	d.queueMu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Device) dispatchLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.wake:
		case <-d.done:
			return
		}
		for {
			d.queueMu.Lock()
			if len(d.queue) == 0 {
				d.queueMu.Unlock()
				break
			}
			evt := d.queue[0]
			d.queue = d.queue[1:]
			listener := d.listener
			d.queueMu.Unlock()
			if listener != nil {
				listener(evt)
			}
		}
	}
}

func (d *Device) tickLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.sample()
		case <-d.done:
			return
		}
	}
}

// sample reports position while playing and the end of stream once.
func (d *Device) sample() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	d.output.Lock()
	c := d.chain
	var (
		playing bool
		ended   bool
		pos     float64
	)
	if c != nil {
		playing = !c.ctrl.Paused
		ended = c.ended
		pos = c.position()
	}
	d.output.Unlock()

	switch {
	case ended && !d.endReported:
		d.endReported = true
		d.wantPlay = false
		d.emit(playback.EventTimeUpdate, pos)
		d.emit(playback.EventEnded, 0)
	case playing:
		d.emit(playback.EventTimeUpdate, pos)
	}
}

// Load binds source and decodes it in the background. EventDurationChange
// announces readiness. Replacing a playing source reports EventPause first.
func (d *Device) Load(source, mimeType string) error {
	codec, err := CodecFor(mimeType, source)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return services.Wrap(services.ErrValidation, component, "load", "device closed", nil)
	}
	if d.cancelLoad != nil {
		d.cancelLoad()
	}
	d.loadGen++
	gen := d.loadGen
	d.source = source
	d.wantPlay = false
	d.pendingSeek = 0
	d.duration = 0
	d.endReported = false
	d.output.Lock()
	wasPlaying := d.chain != nil && !d.chain.ctrl.Paused
	d.output.Unlock()
	d.swapChainLocked(nil)
	if wasPlaying {
		d.emit(playback.EventPause, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancelLoad = cancel
	go d.load(ctx, gen, source, codec)
	return nil
}

func (d *Device) load(ctx context.Context, gen uint64, source string, codec Codec) {
	logger := d.logger.With(logging.String("source", source))
	path, err := resolve(ctx, d.httpClient, d.cacheDir, source, codec)
	if err != nil {
		logging.WarnWithContext(logger, "media unavailable", "media_resolve_failed",
			logging.String(logging.FieldImpact, "track cannot play"),
			logging.Error(err),
		)
		return
	}
	stream, format, err := decode(path, codec)
	if err != nil {
		logging.WarnWithContext(logger, "media decode failed", "media_decode_failed",
			logging.String(logging.FieldImpact, "track cannot play"),
			logging.Error(err),
		)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.loadGen || d.closed {
		_ = stream.Close()
		return
	}
	c := &chain{stream: stream, format: format}
	c.resampler = beep.ResampleRatio(resampleQuality, c.baseRatio()*d.rate, stream)
	c.volume = &effects.Volume{Streamer: c.resampler, Base: 2, Volume: d.volumeDB, Silent: d.muted}
	c.ctrl = &beep.Ctrl{Streamer: c.volume, Paused: true}
	if d.pendingSeek > 0 {
		_ = stream.Seek(clampSample(format.SampleRate.N(secondsToDuration(d.pendingSeek)), stream.Len()))
	}
	d.duration = c.length()
	d.swapChainLocked(c)
	logger.Debug("media ready",
		logging.Float64("duration_seconds", d.duration),
		logging.Int("sample_rate", int(format.SampleRate)),
	)
	d.emit(playback.EventDurationChange, d.duration)
	if d.wantPlay {
		d.resumeLocked()
	}
}

// swapChainLocked installs c and closes the previous chain. d.mu must be held.
func (d *Device) swapChainLocked(c *chain) {
	d.output.Lock()
	old := d.chain
	d.chain = c
	d.output.Unlock()
	if old != nil {
		_ = old.stream.Close()
	}
}

// Play starts playback, or remembers the request until the source is ready.
func (d *Device) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.source == "" {
		return services.Wrap(services.ErrValidation, component, "play", "no source loaded", nil)
	}
	d.wantPlay = true
	if !d.started {
		if err := d.output.Start(OutputRate, mixer{d: d}); err != nil {
			d.wantPlay = false
			return services.Wrap(services.ErrConfiguration, component, "play", "start audio output", err)
		}
		d.started = true
	}
	d.output.Lock()
	ready := d.chain != nil
	d.output.Unlock()
	if !ready {
		return nil
	}
	d.resumeLocked()
	return nil
}

func (d *Device) resumeLocked() {
	d.output.Lock()
	c := d.chain
	if c.ended {
		_ = c.stream.Seek(0)
		c.ended = false
	}
	wasPaused := c.ctrl.Paused
	c.ctrl.Paused = false
	d.output.Unlock()
	d.endReported = false
	if wasPaused {
		d.emit(playback.EventPlay, 0)
	}
}

// Pause stops playback at the current position.
func (d *Device) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wantPlay = false
	d.output.Lock()
	c := d.chain
	wasPlaying := c != nil && !c.ctrl.Paused
	if c != nil {
		c.ctrl.Paused = true
	}
	d.output.Unlock()
	if wasPlaying {
		d.emit(playback.EventPause, 0)
	}
	return nil
}

// CurrentTime reports the decoder position in seconds.
func (d *Device) CurrentTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output.Lock()
	defer d.output.Unlock()
	if d.chain == nil {
		return d.pendingSeek
	}
	return d.chain.position()
}

// SetCurrentTime seeks, clamping to the stream bounds.
func (d *Device) SetCurrentTime(seconds float64) error {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output.Lock()
	c := d.chain
	if c == nil {
		d.output.Unlock()
		d.pendingSeek = seconds
		return nil
	}
	target := clampSample(c.format.SampleRate.N(secondsToDuration(seconds)), c.stream.Len())
	err := c.stream.Seek(target)
	if err == nil && target < c.stream.Len() {
		c.ended = false
	}
	pos := c.position()
	d.output.Unlock()
	if err != nil {
		return services.Wrap(services.ErrValidation, component, "seek", "seek failed", err)
	}
	d.endReported = false
	d.emit(playback.EventTimeUpdate, pos)
	return nil
}

// Duration is the loaded length in seconds, 0 until ready.
func (d *Device) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duration
}

func (d *Device) PlaybackRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

// SetPlaybackRate changes speed by resampling; pitch follows the rate.
func (d *Device) SetPlaybackRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return services.Wrap(services.ErrValidation, component, "rate", "rate must be positive", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rate = rate
	d.output.Lock()
	if c := d.chain; c != nil {
		c.resampler.SetRatio(c.baseRatio() * rate)
	}
	d.output.Unlock()
	return nil
}

func (d *Device) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

func (d *Device) SetMuted(muted bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = muted
	d.output.Lock()
	if c := d.chain; c != nil {
		c.volume.Silent = muted
	}
	d.output.Unlock()
	return nil
}

func (d *Device) CurrentSource() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

// Close stops output, releases the decoder and stops background goroutines.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.cancelLoad != nil {
		d.cancelLoad()
	}
	d.swapChainLocked(nil)
	started := d.started
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	if started {
		d.output.Stop()
	}
	return nil
}

func clampSample(n, length int) int {
	if n < 0 {
		return 0
	}
	if length > 0 && n >= length {
		return length - 1
	}
	return n
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
