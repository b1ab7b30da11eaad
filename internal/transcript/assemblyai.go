package transcript

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
)

// silenceThreshold is the base inactivity window required before a
// command utterance is considered complete. Conservative, to avoid
// cutting the user mid-sentence.
const silenceThreshold = 700 * time.Millisecond

// continuationExtension is added to the silence threshold when the last
// word suggests the user is likely to continue ("and", "or", "if", ...).
const continuationExtension = 1200 * time.Millisecond

// voiceRMS is the energy floor above which a PCM frame counts as voice.
const voiceRMS = 250.0

// AssemblyAIService captures speech through the AssemblyAI realtime
// WebSocket API. One capture session is active at a time; wake-word and
// command sessions never run concurrently, switching always goes through
// Stop. Events outlive sessions on a single channel.
type AssemblyAIService struct {
	apiKey     string
	sampleRate int
	logger     *slog.Logger
	events     chan Event

	mu   sync.Mutex
	sess *session
}

// session is the per-capture state: one WebSocket connection plus the
// utterance accumulation driving silence-based finalization.
type session struct {
	mode      CaptureMode
	conn      *websocket.Conn
	audioData chan []byte
	stopCh    chan struct{}
	stopOnce  sync.Once

	accMu        sync.Mutex
	latest       string
	lastUpdate   time.Time
	lastVoice    time.Time
	silenceTimer *time.Timer
	finalized    bool
}

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewAssemblyAIService creates the capture provider.
func NewAssemblyAIService(apiKey string, sampleRate int, logger *slog.Logger) *AssemblyAIService {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssemblyAIService{
		apiKey:     apiKey,
		sampleRate: sampleRate,
		logger:     logger,
		events:     make(chan Event, 100),
	}
}

// Events returns the capture event stream. Session turnover never closes
// the channel; it lives for the service lifetime.
func (s *AssemblyAIService) Events() <-chan Event { return s.events }

// Start opens a capture session in the given mode. Starting while a
// session is active is an error.
func (s *AssemblyAIService) Start(mode CaptureMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil {
		return fmt.Errorf("transcript: capture already active")
	}
	if s.apiKey == "" {
		return fmt.Errorf("transcript: AssemblyAI API key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", fmt.Sprintf("%d", s.sampleRate))
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, map[string][]string{"Authorization": {s.apiKey}})
	if err != nil {
		if resp != nil {
			s.logger.Error("AssemblyAI connection failed", "status", resp.StatusCode)
		}
		return fmt.Errorf("transcript: connect: %w", err)
	}

	sess := &session{
		mode:       mode,
		conn:       conn,
		audioData:  make(chan []byte, 1000),
		stopCh:     make(chan struct{}),
		lastUpdate: time.Now(),
		lastVoice:  time.Now(),
	}
	s.sess = sess

	go s.readLoop(sess)
	go s.writeLoop(sess)

	s.logger.Info("capture session started", "mode", mode.String())
	return nil
}

// Stop tears down the active session without emitting EventStopped: the
// caller initiated the stop and applies its own completion rules.
func (s *AssemblyAIService) Stop() error {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.shutdown()
	s.logger.Info("capture session stopped", "mode", sess.mode.String())
	return nil
}

// SendPCM16KLE feeds little-endian 16-bit mono PCM into the active
// session. Frames arriving between sessions are dropped.
func (s *AssemblyAIService) SendPCM16KLE(pcm []byte) error {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.detectVoiceActivity(pcm)
	select {
	case sess.audioData <- pcm:
	default:
		s.logger.Warn("audio buffer full, dropping packet")
	}
	return nil
}

func (sess *session) shutdown() {
	sess.stopOnce.Do(func() {
		close(sess.stopCh)
		sess.accMu.Lock()
		if sess.silenceTimer != nil {
			sess.silenceTimer.Stop()
			sess.silenceTimer = nil
		}
		sess.accMu.Unlock()
		_ = sess.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = sess.conn.Close()
	})
}

// detectVoiceActivity updates lastVoice when the PCM buffer holds energy
// above the voice floor. Expects 16-bit little-endian mono.
func (sess *session) detectVoiceActivity(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 {
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	if math.Sqrt(sumSquares/float64(count)) >= voiceRMS {
		sess.accMu.Lock()
		sess.lastVoice = time.Now()
		sess.accMu.Unlock()
	}
}

func (s *AssemblyAIService) writeLoop(sess *session) {
	for {
		select {
		case <-sess.stopCh:
			return
		case pcm := <-sess.audioData:
			if err := sess.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				s.logger.Error("sending audio", "error", err)
				return
			}
		}
	}
}

func (s *AssemblyAIService) readLoop(sess *session) {
	for {
		select {
		case <-sess.stopCh:
			return
		default:
		}
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			select {
			case <-sess.stopCh:
				// Caller tore the session down; the read error is expected.
			default:
				s.fatal(sess, fmt.Errorf("transcript: read: %w", err))
			}
			return
		}
		s.processMessage(sess, message)
	}
}

func (s *AssemblyAIService) processMessage(sess *session, message []byte) {
	var base map[string]any
	if err := json.Unmarshal(message, &base); err != nil {
		s.logger.Error("unmarshaling message", "error", err)
		return
	}
	msgType, _ := base["type"].(string)
	switch msgType {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		s.logger.Debug("AssemblyAI session began", "id", msg.ID)
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		if msg.Transcript == "" {
			return
		}
		s.emit(sess, Event{Type: EventPartial, Text: msg.Transcript})
		sess.accMu.Lock()
		sess.latest = msg.Transcript
		sess.lastUpdate = time.Now()
		if sess.mode == ModeCommand {
			if sess.silenceTimer == nil {
				sess.silenceTimer = time.AfterFunc(silenceThreshold, func() { s.finalizeDueToSilence(sess) })
			} else {
				sess.silenceTimer.Stop()
				sess.silenceTimer.Reset(silenceThreshold)
			}
		}
		sess.accMu.Unlock()
	case "Termination":
		s.logger.Debug("AssemblyAI session terminated")
		if sess.mode == ModeCommand {
			s.finalizeNow(sess)
		}
	case "Error":
		var msg errorMessage
		_ = json.Unmarshal(message, &msg)
		s.fatal(sess, fmt.Errorf("transcript: provider error: %s", msg.Error))
	default:
		s.logger.Debug("unknown message type", "type", msgType)
	}
}

// finalizeDueToSilence fires after the silence window. If text or voice
// energy arrived recently, or the last word hints at a continuation, the
// timer is pushed forward instead of finalizing.
func (s *AssemblyAIService) finalizeDueToSilence(sess *session) {
	select {
	case <-sess.stopCh:
		return
	default:
	}

	sess.accMu.Lock()
	threshold := silenceThreshold
	if isContinuationLikely(sess.latest) {
		threshold += continuationExtension
	}
	now := time.Now()
	sinceText := now.Sub(sess.lastUpdate)
	sinceVoice := now.Sub(sess.lastVoice)
	if sinceText < threshold || sinceVoice < threshold {
		wait := threshold - sinceText
		if rem := threshold - sinceVoice; rem > wait {
			wait = rem
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if sess.silenceTimer != nil {
			sess.silenceTimer.Stop()
			sess.silenceTimer.Reset(wait)
		}
		sess.accMu.Unlock()
		return
	}
	sess.accMu.Unlock()

	s.finalizeNow(sess)
}

// finalizeNow emits the settled transcript followed by the stop signal.
// At most once per session.
func (s *AssemblyAIService) finalizeNow(sess *session) {
	sess.accMu.Lock()
	if sess.finalized {
		sess.accMu.Unlock()
		return
	}
	sess.finalized = true
	text := strings.TrimSpace(sess.latest)
	sess.accMu.Unlock()

	if text != "" {
		s.emit(sess, Event{Type: EventFinal, Text: text})
	}
	s.emit(sess, Event{Type: EventStopped})

	// The utterance is done; the engine restarts capture when it needs more.
	s.mu.Lock()
	if s.sess == sess {
		s.sess = nil
	}
	s.mu.Unlock()
	sess.shutdown()
}

func (s *AssemblyAIService) fatal(sess *session, err error) {
	s.logger.Error("capture session failed", "error", err)
	s.emit(sess, Event{Type: EventFatal, Err: err})
	s.mu.Lock()
	if s.sess == sess {
		s.sess = nil
	}
	s.mu.Unlock()
	sess.shutdown()
}

// emit delivers without dropping so finalized words are never lost, but
// gives up after a beat if nobody is consuming. Partials may drop.
func (s *AssemblyAIService) emit(_ *session, ev Event) {
	if ev.Type == EventPartial {
		select {
		case s.events <- ev:
		default:
		}
		return
	}
	select {
	case s.events <- ev:
	case <-time.After(200 * time.Millisecond):
		s.logger.Warn("event delivery timed out", "type", ev.Type.String())
	}
}

// isContinuationLikely reports whether the last meaningful word indicates
// the speaker will probably keep going.
func isContinuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return ""
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	// Coordinating conjunctions
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	// Subordinating conjunctions and conditionals
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	// Fillers
	"also": {}, "plus": {}, "um": {}, "uh": {},
	// Prepositions that rarely end a command
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "at": {},
}
