package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"podvoice/internal/logging"
	"podvoice/internal/voice"
)

const (
	streamAPIVersion    = "2025-04-16"
	streamChunkSize     = 4096
	streamChunkBacklog  = 64
	streamWriteDeadline = 5 * time.Second
	streamDialTimeout   = 10 * time.Second
)

// ErrAudioExhausted is returned by Start once the audio source has ended.
var ErrAudioExhausted = errors.New("audio source exhausted")

// StreamOptions configures the websocket recognizer.
type StreamOptions struct {
	URL        string
	APIKey     string
	Model      string
	SampleRate int
	// Audio supplies raw 16-bit little-endian PCM.
	Audio  io.Reader
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// transcriptMessage is one server frame.
type transcriptMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error"`
}

// audioPump reads the audio source once for the lifetime of a Stream. Each
// recognition run drains chunks while it is connected.
type audioPump struct {
	once   sync.Once
	src    io.Reader
	chunks chan []byte
	mu     sync.Mutex
	err    error
}

func (p *audioPump) start() {
	p.once.Do(func() {
		go p.run()
	})
}

func (p *audioPump) run() {
	defer close(p.chunks)
	buf := make([]byte, streamChunkSize)
	for {
		n, err := p.src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.chunks <- chunk
		}
		if err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return
		}
	}
}

func (p *audioPump) exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err != nil && len(p.chunks) == 0
}

// Stream sends microphone audio to a streaming speech-to-text websocket and
// reports transcripts as recognition results.
type Stream struct {
	opts   StreamOptions
	locale string
	sink   voice.EventSink
	logger *slog.Logger
	pump   *audioPump

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	stop    chan struct{}
	stopped bool
	results []voice.Result
}

// NewStreamFactory returns a voice.Factory producing Stream recognizers that
// share one audio source.
func NewStreamFactory(opts StreamOptions) voice.Factory {
	pump := &audioPump{src: opts.Audio, chunks: make(chan []byte, streamChunkBacklog)}
	return func(ro voice.RecognizerOptions, sink voice.EventSink) (voice.Recognizer, error) {
		if opts.Audio == nil {
			return nil, fmt.Errorf("stream recognizer: %w: no audio source", voice.ErrUnsupported)
		}
		if strings.TrimSpace(opts.URL) == "" {
			return nil, errors.New("stream recognizer: url is required")
		}
		return newStream(opts, ro, sink, pump), nil
	}
}

func newStream(opts StreamOptions, ro voice.RecognizerOptions, sink voice.EventSink, pump *audioPump) *Stream {
	if opts.Model == "" {
		opts.Model = "ink-whisper"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: streamDialTimeout}
	}
	return &Stream{
		opts:   opts,
		locale: ro.Locale,
		sink:   sink,
		logger: logging.NewComponentLogger(opts.Logger, "speech.stream"),
		pump:   pump,
	}
}

// language reduces a BCP 47 locale to its primary subtag.
func language(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "en"
	}
	if idx := strings.IndexAny(locale, "-_"); idx > 0 {
		locale = locale[:idx]
	}
	return strings.ToLower(locale)
}

func (s *Stream) endpoint() (string, error) {
	u, err := url.Parse(s.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("model", s.opts.Model)
	q.Set("language", language(s.locale))
	q.Set("encoding", "pcm_s16le")
	q.Set("sample_rate", strconv.Itoa(s.opts.SampleRate))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start connects and begins streaming audio.
func (s *Stream) Start() error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	if s.pump.exhausted() {
		return ErrAudioExhausted
	}
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}
	headers := http.Header{}
	if s.opts.APIKey != "" {
		headers.Set("X-API-Key", s.opts.APIKey)
	}
	headers.Set("Cartesia-Version", streamAPIVersion)

	ctx, cancel := context.WithTimeout(context.Background(), streamDialTimeout)
	defer cancel()
	conn, resp, err := s.opts.Dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("stream connect (status %d): %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), err)
		}
		return fmt.Errorf("stream connect: %w", err)
	}

	stop := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.stop = stop
	s.stopped = false
	s.results = nil
	s.mu.Unlock()

	s.pump.start()
	go s.writeLoop(conn, stop)
	go s.readLoop(conn, stop)
	s.logger.Debug("stream recognition connected", logging.String("language", language(s.locale)))
	return nil
}

// Stop closes the connection with a normal close frame.
func (s *Stream) Stop() error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	s.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteDeadline))
	s.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		_ = conn.Close()
		return err
	}
	return nil
}

func (s *Stream) write(conn *websocket.Conn, kind int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteDeadline))
	return conn.WriteMessage(kind, data)
}

func (s *Stream) writeLoop(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case chunk, ok := <-s.pump.chunks:
			if !ok {
				_ = s.write(conn, websocket.TextMessage, []byte("finalize"))
				_ = s.write(conn, websocket.TextMessage, []byte("done"))
				return
			}
			if err := s.write(conn, websocket.BinaryMessage, chunk); err != nil {
				s.logger.Debug("send audio failed", logging.Error(err))
				return
			}
		}
	}
}

func (s *Stream) readLoop(conn *websocket.Conn, stop chan struct{}) {
	var recErr *voice.RecognitionError
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					recErr = &voice.RecognitionError{Code: voice.ErrorNetwork, Message: err.Error()}
				}
			}
			break
		}
		var msg transcriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("ignoring malformed stream frame", logging.Error(err))
			continue
		}
		if msg.Type == "done" {
			break
		}
		if msg.Type == "error" {
			recErr = &voice.RecognitionError{Code: voice.ErrorNetwork, Message: msg.Error}
			break
		}
		if msg.Type == "transcript" {
			s.deliver(msg)
		}
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		if !s.stopped {
			s.stopped = true
			close(stop)
		}
	}
	s.mu.Unlock()
	_ = conn.Close()

	if recErr != nil {
		s.sink.OnError(*recErr)
	}
	s.sink.OnEnd()
}

// deliver appends a transcript to the running result list. An interim
// transcript replaces the previous interim entry.
func (s *Stream) deliver(msg transcriptMessage) {
	s.mu.Lock()
	if n := len(s.results); n > 0 && !s.results[n-1].Final {
		s.results = s.results[:n-1]
	}
	s.results = append(s.results, voice.Result{
		Final:        msg.IsFinal,
		Alternatives: []voice.Alternative{{Transcript: msg.Text, Confidence: 1}},
	})
	evt := voice.ResultEvent{Results: append([]voice.Result(nil), s.results...)}
	s.mu.Unlock()
	s.sink.OnResult(evt)
}
