package voice

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by a Factory when the platform cannot provide a
// continuous recognizer.
var ErrUnsupported = errors.New("continuous speech recognition is not supported")

// Recognition error codes reported by backends.
const (
	ErrorAborted  = "aborted"
	ErrorNetwork  = "network"
	ErrorNoSpeech = "no-speech"
	ErrorAudio    = "audio-capture"
)

// RecognizerOptions configures a recognizer at construction.
type RecognizerOptions struct {
	Continuous     bool
	InterimResults bool
	Locale         string
}

// Alternative is one candidate transcript of a result.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result groups the alternatives for one utterance segment.
type Result struct {
	Final        bool          `json:"isFinal"`
	Alternatives []Alternative `json:"alternatives"`
}

// ResultEvent carries every result known to the recognizer so far; the most
// recent one is last.
type ResultEvent struct {
	Results []Result `json:"results"`
}

// Latest returns the last result and its best alternative.
func (e ResultEvent) Latest() (Result, Alternative, bool) {
	if len(e.Results) == 0 {
		return Result{}, Alternative{}, false
	}
	last := e.Results[len(e.Results)-1]
	if len(last.Alternatives) == 0 {
		return last, Alternative{}, false
	}
	return last, last.Alternatives[0], true
}

// RecognitionError is reported through EventSink.OnError.
type RecognitionError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e RecognitionError) Error() string {
	if e.Message == "" {
		return "speech recognition: " + e.Code
	}
	return fmt.Sprintf("speech recognition: %s: %s", e.Code, e.Message)
}

// Fatal reports whether the error ends the listening session instead of
// triggering a restart.
func (e RecognitionError) Fatal() bool {
	return e.Code == ErrorAborted
}

// Recognizer is a continuous speech recognizer. Start after a natural end is
// allowed; implementations may deliver events synchronously from Start and
// Stop.
type Recognizer interface {
	Start() error
	Stop() error
}

// EventSink receives recognizer callbacks.
type EventSink interface {
	OnResult(ResultEvent)
	OnError(RecognitionError)
	OnEnd()
}

// Factory builds a recognizer delivering to sink.
type Factory func(opts RecognizerOptions, sink EventSink) (Recognizer, error)

// UnsupportedFactory always reports ErrUnsupported.
func UnsupportedFactory(RecognizerOptions, EventSink) (Recognizer, error) {
	return nil, ErrUnsupported
}
