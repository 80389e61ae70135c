package voice

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"podvoice/internal/logging"
	"podvoice/internal/playback"
)

const (
	// DefaultRestartDelay separates a recognizer end or error from the next
	// start.
	DefaultRestartDelay = 100 * time.Millisecond
	// DefaultMaxRestarts bounds consecutive failed restarts before the
	// controller gives up.
	DefaultMaxRestarts = 50
	// DefaultSeekSeconds is the forward/rewind step.
	DefaultSeekSeconds = 10
	// DefaultLocale is requested from recognizers when none is configured.
	DefaultLocale = "en-US"
)

// Player is the playback surface voice commands act on. Play resumes or
// starts the track the controller was created for.
type Player interface {
	Play()
	Pause()
	SeekBy(delta float64)
	SetPlaybackRate(rate float64)
	ToggleMute()
	PlaybackRate() float64
	Muted() bool
}

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAfterFunc replaces the timer used for restarts.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithRates sets the ladder used by speed commands.
func WithRates(rates playback.RateLadder) Option {
	return func(c *Controller) {
		if len(rates.Rates()) > 0 {
			c.rates = rates
		}
	}
}

// WithLocale sets the recognition locale.
func WithLocale(locale string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(locale) != "" {
			c.locale = strings.TrimSpace(locale)
		}
	}
}

// WithSeekSeconds sets the forward/rewind step.
func WithSeekSeconds(seconds float64) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.seekStep = seconds
		}
	}
}

// WithRestartDelay sets the delay before restarting after an end or error.
func WithRestartDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.restartDelay = d
		}
	}
}

// WithMaxRestarts bounds consecutive failed restarts. Zero or less means
// unbounded.
func WithMaxRestarts(n int) Option {
	return func(c *Controller) {
		c.maxRestarts = n
	}
}

// WithListeningHook is called, outside the controller lock, whenever the
// listening flag changes.
func WithListeningHook(fn func(listening bool)) Option {
	return func(c *Controller) {
		c.onListening = fn
	}
}

// WithCommandHook is called after a final transcript has been classified and
// executed.
func WithCommandHook(fn func(cmd Command, transcript string)) Option {
	return func(c *Controller) {
		c.onCommand = fn
	}
}

// Controller keeps a recognizer running while voice control is enabled and
// executes recognised commands on a Player.
type Controller struct {
	player  Player
	factory Factory
	logger  *slog.Logger

	afterFunc    AfterFunc
	rates        playback.RateLadder
	locale       string
	seekStep     float64
	restartDelay time.Duration
	maxRestarts  int
	onListening  func(bool)
	onCommand    func(Command, string)

	mu         sync.Mutex
	recognizer Recognizer
	supported  bool
	listening  bool
	closed     bool
	failures   int
	generation uint64
	pending    Timer
}

// sink adapts recognizer callbacks onto the controller without exposing
// them in its public surface.
type sink struct{ c *Controller }

func (s sink) OnResult(evt ResultEvent)     { s.c.handleResult(evt) }
func (s sink) OnError(err RecognitionError) { s.c.handleError(err) }
func (s sink) OnEnd()                       { s.c.handleEnd() }

// NewController builds a controller for player and creates its recognizer.
// A factory reporting ErrUnsupported leaves the controller permanently
// disabled. Factories must not deliver events before returning.
func NewController(player Player, factory Factory, opts ...Option) *Controller {
	c := &Controller{
		player:       player,
		factory:      factory,
		logger:       logging.NewNop(),
		afterFunc:    realAfterFunc,
		rates:        playback.DefaultRateLadder(),
		locale:       DefaultLocale,
		seekStep:     DefaultSeekSeconds,
		restartDelay: DefaultRestartDelay,
		maxRestarts:  DefaultMaxRestarts,
		supported:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.factory == nil {
		c.factory = UnsupportedFactory
	}
	c.logger = logging.NewComponentLogger(c.logger, "voice")

	c.mu.Lock()
	c.ensureRecognizerLocked()
	c.mu.Unlock()
	return c
}

func (c *Controller) options() RecognizerOptions {
	return RecognizerOptions{Continuous: true, InterimResults: true, Locale: c.locale}
}

func (c *Controller) ensureRecognizerLocked() bool {
	if c.recognizer != nil {
		return true
	}
	if !c.supported {
		return false
	}
	rec, err := c.factory(c.options(), sink{c})
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			c.supported = false
			c.logger.Info("speech recognition not supported", logging.String("locale", c.locale))
			return false
		}
		c.logger.Warn("create recognizer failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "recognizer_create_failed"),
			logging.String(logging.FieldErrorHint, "check the [speech] section of the config"),
		)
		return false
	}
	c.recognizer = rec
	return true
}

// Supported reports whether a recognizer could be created on this platform.
func (c *Controller) Supported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.supported
}

// Listening reports whether voice control is enabled.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Toggle switches voice control on or off.
func (c *Controller) Toggle() {
	c.mu.Lock()
	if c.closed || !c.supported {
		c.mu.Unlock()
		return
	}
	if c.listening {
		rec := c.disableLocked()
		c.mu.Unlock()
		c.logger.Debug("stopping recognition")
		c.stopRecognizer(rec)
		c.notifyListening(false)
		return
	}
	if !c.ensureRecognizerLocked() {
		c.mu.Unlock()
		return
	}
	c.listening = true
	c.failures = 0
	c.generation++
	rec := c.recognizer
	c.mu.Unlock()

	c.notifyListening(true)
	c.logger.Debug("starting continuous recognition", logging.String("locale", c.locale))
	if err := rec.Start(); err != nil {
		c.logger.Warn("start recognition failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "recognizer_start_failed"),
			logging.String(logging.FieldErrorHint, "check microphone access or the speech provider"),
		)
		c.mu.Lock()
		changed := c.listening
		c.disableLocked()
		c.mu.Unlock()
		if changed {
			c.notifyListening(false)
		}
	}
}

// Close stops and releases the recognizer. A closed controller ignores
// Toggle.
func (c *Controller) Close() error {
	c.mu.Lock()
	wasListening := c.listening
	c.disableLocked()
	rec := c.recognizer
	c.recognizer = nil
	c.closed = true
	c.mu.Unlock()

	var err error
	if rec != nil {
		err = rec.Stop()
	}
	if wasListening {
		c.notifyListening(false)
	}
	return err
}

// disableLocked clears the listening flag, invalidates pending restarts and
// returns the recognizer to stop.
func (c *Controller) disableLocked() Recognizer {
	c.listening = false
	c.generation++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	return c.recognizer
}

func (c *Controller) stopRecognizer(rec Recognizer) {
	if rec == nil {
		return
	}
	if err := rec.Stop(); err != nil {
		c.logger.Debug("stop recognition failed", logging.Error(err))
	}
}

func (c *Controller) notifyListening(listening bool) {
	if c.onListening != nil {
		c.onListening(listening)
	}
}

func (c *Controller) handleResult(evt ResultEvent) {
	result, alt, ok := evt.Latest()
	if !ok {
		return
	}
	transcript := strings.TrimSpace(alt.Transcript)
	if !result.Final {
		c.logger.Debug("interim transcript", logging.String("transcript", transcript))
		return
	}
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()

	cmd := Classify(transcript)
	c.logger.Debug("final transcript",
		logging.String("transcript", transcript),
		logging.Float64("confidence", alt.Confidence),
		logging.String("command", cmd.String()),
	)
	c.execute(cmd)
	if c.onCommand != nil {
		c.onCommand(cmd, transcript)
	}
}

func (c *Controller) execute(cmd Command) {
	switch cmd {
	case CommandPlay:
		c.player.Play()
	case CommandPause:
		c.player.Pause()
	case CommandForward:
		c.player.SeekBy(c.seekStep)
	case CommandRewind:
		c.player.SeekBy(-c.seekStep)
	case CommandSpeedUp:
		next, ok := c.rates.NextRate(c.player.PlaybackRate())
		if !ok {
			c.logger.Debug("already at maximum speed")
			return
		}
		c.player.SetPlaybackRate(next)
	case CommandSlowDown:
		prev, ok := c.rates.PrevRate(c.player.PlaybackRate())
		if !ok {
			c.logger.Debug("already at minimum speed")
			return
		}
		c.player.SetPlaybackRate(prev)
	case CommandNormalSpeed:
		c.player.SetPlaybackRate(c.rates.NormalRate())
	case CommandUnmute:
		if c.player.Muted() {
			c.player.ToggleMute()
		}
	case CommandMute:
		c.player.ToggleMute()
	}
}

func (c *Controller) handleError(recErr RecognitionError) {
	c.logger.Debug("recognition error", logging.String("code", recErr.Code), logging.String("message", recErr.Message))

	c.mu.Lock()
	if !c.listening {
		c.mu.Unlock()
		return
	}
	if recErr.Fatal() {
		c.disableLocked()
		c.mu.Unlock()
		c.notifyListening(false)
		return
	}
	c.scheduleRestartLocked()
	c.mu.Unlock()
}

func (c *Controller) handleEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.listening {
		return
	}
	c.logger.Debug("recognition ended, restarting")
	c.scheduleRestartLocked()
}

func (c *Controller) exhaustedLocked() bool {
	return c.maxRestarts > 0 && c.failures > c.maxRestarts
}

// giveUpLocked disables the controller and releases its recognizer so a later
// Toggle starts from a fresh one.
func (c *Controller) giveUpLocked() Recognizer {
	logging.WarnWithContext(c.logger, "recognition restarts exhausted", "recognizer_restarts_exhausted",
		logging.Int("failures", c.failures),
		logging.Int("max_restarts", c.maxRestarts),
		logging.String(logging.FieldImpact, "voice control switched off"),
	)
	rec := c.disableLocked()
	c.recognizer = nil
	return rec
}

func (c *Controller) scheduleRestartLocked() {
	if c.pending != nil {
		return
	}
	gen := c.generation
	c.pending = c.afterFunc(c.restartDelay, func() { c.restart(gen) })
}

func (c *Controller) restart(gen uint64) {
	c.mu.Lock()
	c.pending = nil
	if !c.listening || c.generation != gen || c.recognizer == nil {
		c.mu.Unlock()
		return
	}
	rec := c.recognizer
	c.mu.Unlock()

	err := rec.Start()
	if err == nil {
		c.mu.Lock()
		if c.generation == gen {
			c.failures = 0
		}
		c.mu.Unlock()
		return
	}
	c.logger.Debug("restart recognition failed", logging.Error(err))

	c.mu.Lock()
	if !c.listening || c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.failures++
	if c.exhaustedLocked() {
		dropped := c.giveUpLocked()
		c.mu.Unlock()
		c.stopRecognizer(dropped)
		c.notifyListening(false)
		return
	}
	c.scheduleRestartLocked()
	c.mu.Unlock()
}
