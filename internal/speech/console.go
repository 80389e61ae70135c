package speech

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"podvoice/internal/logging"
	"podvoice/internal/voice"
)

// ErrAlreadyStarted is returned by Start while a recognition run is active.
var ErrAlreadyStarted = errors.New("recognizer already started")

type lineReader interface {
	Readline() (string, error)
	Close() error
}

// ConsoleOptions configures the terminal recognizer.
type ConsoleOptions struct {
	Prompt string
	Logger *slog.Logger
	// newReader is replaced in tests.
	newReader func(prompt string) (lineReader, error)
}

// Console reads commands typed on the terminal. Every non-empty line is a
// final result with confidence 1.
type Console struct {
	opts   ConsoleOptions
	sink   voice.EventSink
	logger *slog.Logger

	mu      sync.Mutex
	reader  lineReader
	run     uint64
	stopped bool
}

func newReadline(prompt string) (lineReader, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryLimit:    -1,
	})
}

// NewConsoleFactory returns a voice.Factory producing Console recognizers.
func NewConsoleFactory(opts ConsoleOptions) voice.Factory {
	return func(_ voice.RecognizerOptions, sink voice.EventSink) (voice.Recognizer, error) {
		return NewConsole(opts, sink), nil
	}
}

// NewConsole creates a console recognizer delivering to sink.
func NewConsole(opts ConsoleOptions, sink voice.EventSink) *Console {
	if opts.Prompt == "" {
		opts.Prompt = "voice> "
	}
	if opts.newReader == nil {
		opts.newReader = newReadline
	}
	return &Console{
		opts:   opts,
		sink:   sink,
		logger: logging.NewComponentLogger(opts.Logger, "speech.console"),
	}
}

// Start opens the prompt and begins delivering lines.
func (c *Console) Start() error {
	c.mu.Lock()
	if c.reader != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	reader, err := c.opts.newReader(c.opts.Prompt)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.reader = reader
	c.run++
	c.stopped = false
	run := c.run
	c.mu.Unlock()

	go c.loop(reader, run)
	return nil
}

// Stop closes the prompt. The run ends with a single end event.
func (c *Console) Stop() error {
	c.mu.Lock()
	reader := c.reader
	c.stopped = true
	c.mu.Unlock()
	if reader == nil {
		return nil
	}
	return reader.Close()
}

func (c *Console) loop(reader lineReader, run uint64) {
	var recErr *voice.RecognitionError
	for {
		line, err := reader.Readline()
		if err != nil {
			c.mu.Lock()
			stopped := c.stopped
			c.mu.Unlock()
			switch {
			case stopped:
			case errors.Is(err, readline.ErrInterrupt):
				recErr = &voice.RecognitionError{Code: voice.ErrorAborted, Message: "interrupted"}
			case errors.Is(err, io.EOF):
			default:
				recErr = &voice.RecognitionError{Code: voice.ErrorAudio, Message: err.Error()}
			}
			break
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		c.sink.OnResult(voice.ResultEvent{Results: []voice.Result{{
			Final:        true,
			Alternatives: []voice.Alternative{{Transcript: text, Confidence: 1}},
		}}})
	}

	c.mu.Lock()
	if c.run == run {
		c.reader = nil
	}
	c.mu.Unlock()
	_ = reader.Close()

	if recErr != nil {
		c.logger.Debug("console recognition error", logging.String("code", recErr.Code))
		c.sink.OnError(*recErr)
	}
	c.sink.OnEnd()
}
