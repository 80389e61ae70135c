package web

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"podvoice/internal/logging"
	"podvoice/internal/playback"
	"podvoice/internal/services"
	"podvoice/internal/voice"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = 50 * time.Second
	socketOutbox     = 256
	socketMaxMessage = 1 << 20
)

var playerUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// playerConn is one browser tab: a playback session over BrowserMedia and a
// voice controller over the browser's recognizer.
type playerConn struct {
	server *Server
	conn   *websocket.Conn
	logger *slog.Logger

	outbox    chan any
	done      chan struct{}
	closeOnce sync.Once

	media   *BrowserMedia
	speech  *browserSpeech
	session *playback.Session
	rates   playback.RateLadder

	mu         sync.Mutex
	controller *voice.Controller
	voiceTrack *playback.TrackRef
	lastState  *playback.State
}

func (s *Server) handlePlayerSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := playerUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Debug("player socket upgrade failed", logging.Error(err))
		return
	}
	ctx := services.WithSessionID(r.Context(), uuid.NewString())
	pc := s.newPlayerConn(ctx, conn)

	s.sessions.Add(1)
	defer s.sessions.Add(-1)

	pc.logger.Info("player connected", logging.String("remote", clientIP(r, s.cfg.RateLimit.TrustForwardedFor)))
	go pc.writeLoop()
	pc.readLoop()
	pc.shutdown()
	pc.logger.Info("player disconnected")
}

func (s *Server) newPlayerConn(ctx context.Context, conn *websocket.Conn) *playerConn {
	pc := &playerConn{
		server: s,
		conn:   conn,
		logger: logging.WithContext(ctx, s.log()),
		outbox: make(chan any, socketOutbox),
		done:   make(chan struct{}),
	}
	rates, err := playback.NewRateLadder(s.cfg.Player.PlaybackRates)
	if err != nil {
		rates = playback.DefaultRateLadder()
	}
	pc.rates = rates
	pc.media = NewBrowserMedia(pc.enqueue)
	pc.speech = newBrowserSpeech(pc.enqueue)
	pc.session = playback.NewSession(pc.media,
		playback.WithLogger(pc.logger),
		playback.WithInitialRate(rates.NormalRate()),
	)
	pc.session.Subscribe(pc.publishState)
	return pc
}

// enqueue queues msg for the writer. A browser that falls too far behind is
// disconnected rather than allowed to block the session.
func (pc *playerConn) enqueue(msg any) {
	select {
	case <-pc.done:
		return
	default:
	}
	select {
	case pc.outbox <- msg:
	case <-pc.done:
	default:
		pc.logger.Warn("player outbox full; closing connection",
			logging.String(logging.FieldEventType, "player_outbox_overflow"),
		)
		pc.close()
	}
}

func (pc *playerConn) close() {
	pc.closeOnce.Do(func() {
		close(pc.done)
		_ = pc.conn.Close()
	})
}

func (pc *playerConn) publishState(st playback.State) {
	pc.mu.Lock()
	if pc.lastState != nil && reflect.DeepEqual(*pc.lastState, st) {
		pc.mu.Unlock()
		return
	}
	pc.lastState = &st
	pc.mu.Unlock()
	pc.enqueue(stateMessage{Type: "state", State: st})
}

func (pc *playerConn) writeLoop() {
	ticker := time.NewTicker(socketPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-pc.done:
			return
		case msg := <-pc.outbox:
			_ = pc.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := pc.conn.WriteJSON(msg); err != nil {
				pc.logger.Debug("player write failed", logging.Error(err))
				pc.close()
				return
			}
		case <-ticker.C:
			if err := pc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
				pc.close()
				return
			}
		}
	}
}

func (pc *playerConn) readLoop() {
	pc.conn.SetReadLimit(socketMaxMessage)
	_ = pc.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	pc.conn.SetPongHandler(func(string) error {
		return pc.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})
	pc.enqueue(stateMessage{Type: "state", State: pc.session.Snapshot()})
	for {
		var msg inboundMessage
		if err := pc.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pc.logger.Debug("player read failed", logging.Error(err))
			}
			return
		}
		_ = pc.conn.SetReadDeadline(time.Now().Add(socketPongWait))
		pc.handle(msg)
	}
}

func (pc *playerConn) handle(msg inboundMessage) {
	switch msg.Type {
	case "media-event":
		pc.media.Report(msg.Event, msg.Value)
	case "speech":
		if pc.speech.Report(msg) {
			pc.logger.Info("browser has no speech recognition")
			pc.resetController()
			pc.enqueue(voiceMessage{Type: "voice", Supported: false})
		}
	case "action":
		pc.handleAction(msg)
	default:
		pc.logger.Debug("ignoring player message", logging.String("type", msg.Type))
	}
}

func (pc *playerConn) handleAction(msg inboundMessage) {
	track := msg.Track
	if track != nil && track.Source == "" {
		track = nil
	}
	switch msg.Action {
	case "play":
		pc.session.Play(track)
	case "pause":
		pc.session.Pause()
	case "toggle":
		pc.session.Toggle(track)
	case "seek":
		pc.session.Seek(msg.Value)
	case "seekBy":
		pc.session.SeekBy(msg.Value)
	case "rate":
		pc.session.SetPlaybackRate(msg.Value)
	case "mute":
		pc.session.ToggleMute()
	case "voice":
		if ctrl := pc.controllerFor(track); ctrl != nil {
			ctrl.Toggle()
		}
	default:
		pc.logger.Debug("ignoring player action", logging.String("action", msg.Action))
	}
}

// controllerFor returns the voice controller bound to track, replacing one
// bound to another track. Without a track it reuses the current controller.
func (pc *playerConn) controllerFor(track *playback.TrackRef) *voice.Controller {
	pc.mu.Lock()
	if pc.controller != nil && (track == nil || pc.voiceTrack.SameSource(track)) {
		ctrl := pc.controller
		pc.mu.Unlock()
		return ctrl
	}
	old := pc.controller
	pc.controller = nil
	pc.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	if track == nil {
		return nil
	}

	cfg := pc.server.cfg
	ctrl := voice.NewController(pc.session.For(track), pc.speech.Factory(),
		voice.WithLogger(pc.logger),
		voice.WithRates(pc.rates),
		voice.WithLocale(cfg.Speech.Locale),
		voice.WithSeekSeconds(cfg.Player.SeekSeconds),
		voice.WithRestartDelay(time.Duration(cfg.Speech.RestartDelayMillis)*time.Millisecond),
		voice.WithMaxRestarts(cfg.Speech.MaxRestarts),
		voice.WithListeningHook(func(listening bool) {
			pc.enqueue(voiceMessage{Type: "voice", Listening: listening, Supported: true})
		}),
		voice.WithCommandHook(func(cmd voice.Command, transcript string) {
			pc.logger.Info("voice command",
				logging.String("command", cmd.String()),
				logging.String("transcript", transcript),
			)
			pc.enqueue(voiceMessage{Type: "voice", Listening: true, Supported: true, Command: cmd.String()})
		}),
	)
	if !ctrl.Supported() {
		pc.enqueue(voiceMessage{Type: "voice", Supported: false})
	}

	pc.mu.Lock()
	pc.controller = ctrl
	copied := *track
	pc.voiceTrack = &copied
	pc.mu.Unlock()
	return ctrl
}

// resetController drops the controller so the next voice action builds one
// against the updated browser capabilities.
func (pc *playerConn) resetController() {
	pc.mu.Lock()
	ctrl := pc.controller
	pc.controller = nil
	pc.voiceTrack = nil
	pc.mu.Unlock()
	if ctrl != nil {
		_ = ctrl.Close()
	}
}

func (pc *playerConn) shutdown() {
	pc.resetController()
	pc.close()
}
