package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KingLuiBoi/GWENApp/internal/backend"
	"github.com/KingLuiBoi/GWENApp/internal/metrics"
	"github.com/KingLuiBoi/GWENApp/internal/permissions"
	"github.com/KingLuiBoi/GWENApp/internal/transcript"
)

// DefaultWakePhrase is the trigger utterance.
const DefaultWakePhrase = "hey gwen"

// Engine is the voice interaction state machine. All mutation happens
// under one mutex; async completions (backend reply, playback done,
// permission grant) re-enter through handlers that verify the generation
// counter or the state they were issued from, and drop stale results.
type Engine struct {
	transcriber Transcriber
	player      Player
	backend     PromptSender
	auth        permissions.Authorizer
	metrics     *metrics.Metrics
	logger      *slog.Logger
	wakePhrase  string

	mu               sync.Mutex
	ctx              context.Context
	state            State
	pending          string
	conversation     []Interaction
	lastError        string
	lastFailedPrompt string
	micGranted       bool
	// gen invalidates outstanding async completions. Bumped when a
	// prompt is dispatched and on forced resets.
	gen uint64
}

// NewEngine wires the engine. A nil metrics or logger is fine.
func NewEngine(transcriber Transcriber, player Player, sender PromptSender, auth permissions.Authorizer, m *metrics.Metrics, wakePhrase string, logger *slog.Logger) *Engine {
	if wakePhrase == "" {
		wakePhrase = DefaultWakePhrase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		transcriber: transcriber,
		player:      player,
		backend:     sender,
		auth:        auth,
		metrics:     m,
		logger:      logger,
		wakePhrase:  strings.ToLower(wakePhrase),
		state:       StateIdle,
	}
}

// Start launches the capture event consumer. It returns immediately; the
// engine runs until ctx is canceled.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
	go e.consumeEvents(ctx)
}

// Snapshot returns the observable state for the presentation layer.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv := make([]Interaction, len(e.conversation))
	copy(conv, e.conversation)
	return Snapshot{
		State:         e.state.String(),
		PendingPrompt: e.pending,
		LastError:     e.lastError,
		Conversation:  conv,
	}
}

// EnableWakeWord starts passive wake phrase detection. A no-op outside
// Idle.
func (e *Engine) EnableWakeWord() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return
	}
	e.withMicPermissionLocked(e.beginWakeListeningLocked)
}

// DisableWakeWord stops wake phrase detection. Also clears a permission
// block, returning to Idle.
func (e *Engine) DisableWakeWord() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateWakeWordListening:
		_ = e.transcriber.Stop()
		e.setStateLocked(StateIdle)
	case StatePermissionBlocked:
		e.setStateLocked(StateIdle)
	}
}

// StartManualCapture begins command capture without the wake phrase
// (tap-to-talk). Valid from Idle or WakeWordListening.
func (e *Engine) StartManualCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateIdle:
		e.withMicPermissionLocked(e.beginActiveListeningLocked)
	case StateWakeWordListening:
		_ = e.transcriber.Stop()
		e.withMicPermissionLocked(e.beginActiveListeningLocked)
	}
}

// StopManualCapture ends command capture. The captured text follows the
// same rule as an automatic end of speech: blank discards, non-blank
// sends.
func (e *Engine) StopManualCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActiveListening {
		return
	}
	_ = e.transcriber.Stop()
	e.finishCaptureLocked()
}

// SubmitTypedPrompt sends text the user typed instead of spoke. Blank
// input is rejected locally; a prompt already in flight makes this a
// no-op.
func (e *Engine) SubmitTypedPrompt(text string) {
	trimmed := strings.TrimSpace(text)
	e.mu.Lock()
	defer e.mu.Unlock()
	if trimmed == "" {
		return
	}
	switch e.state {
	case StateIdle:
		e.sendLocked(trimmed)
	case StateWakeWordListening:
		_ = e.transcriber.Stop()
		e.sendLocked(trimmed)
	}
}

// RetryLastFailedPrompt resends the most recent failed prompt, if any.
func (e *Engine) RetryLastFailedPrompt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle || e.lastFailedPrompt == "" {
		return
	}
	e.sendLocked(e.lastFailedPrompt)
}

// DismissError clears the retained error message. A permission block is
// cleared back to Idle.
func (e *Engine) DismissError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastError = ""
	if e.state == StatePermissionBlocked {
		e.setStateLocked(StateIdle)
	}
}

// withMicPermissionLocked runs next immediately when microphone access is
// already granted. Otherwise the engine blocks on permission and asks in
// the background; on grant the original transition is re-attempted.
func (e *Engine) withMicPermissionLocked(next func()) {
	if e.micGranted {
		next()
		return
	}
	e.setStateLocked(StatePermissionBlocked)
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		granted, err := e.auth.RequestMicrophoneAndSpeech(ctx)
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state != StatePermissionBlocked {
			return
		}
		if err != nil || !granted {
			e.lastError = "microphone permission denied"
			e.logger.Warn("microphone permission not granted", "error", err)
			return
		}
		e.micGranted = true
		next()
	}()
}

func (e *Engine) beginWakeListeningLocked() {
	if err := e.transcriber.Start(transcript.ModeWakeWord); err != nil {
		e.lastError = "could not start listening"
		e.logger.Error("starting wake capture", "error", err)
		e.setStateLocked(StateIdle)
		return
	}
	e.setStateLocked(StateWakeWordListening)
}

func (e *Engine) beginActiveListeningLocked() {
	e.pending = ""
	if err := e.transcriber.Start(transcript.ModeCommand); err != nil {
		e.lastError = "could not start listening"
		e.logger.Error("starting command capture", "error", err)
		e.setStateLocked(StateIdle)
		return
	}
	e.setStateLocked(StateActiveListening)
}

func (e *Engine) consumeEvents(ctx context.Context) {
	events := e.transcriber.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handleEvent(ev)
		}
	}
}

func (e *Engine) handleEvent(ev transcript.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch ev.Type {
	case transcript.EventPartial:
		switch e.state {
		case StateWakeWordListening:
			if strings.Contains(strings.ToLower(ev.Text), e.wakePhrase) {
				e.logger.Info("wake phrase detected")
				// Stop wake detection fully before command capture
				// starts; the two sessions never overlap.
				_ = e.transcriber.Stop()
				e.beginActiveListeningLocked()
			}
		case StateActiveListening:
			e.pending = ev.Text
		}
	case transcript.EventFinal:
		if e.state == StateActiveListening {
			e.pending = ev.Text
		}
	case transcript.EventStopped:
		if e.state == StateActiveListening {
			e.finishCaptureLocked()
		}
	case transcript.EventFatal:
		e.forceIdleLocked("voice capture failed")
	}
}

// finishCaptureLocked applies the end-of-capture rule: blank pending text
// returns to Idle with no request, anything else is sent.
func (e *Engine) finishCaptureLocked() {
	trimmed := strings.TrimSpace(e.pending)
	if trimmed == "" {
		e.setStateLocked(StateIdle)
		return
	}
	e.sendLocked(trimmed)
}

// sendLocked dispatches one prompt. The backend expects every prompt to
// begin with the wake phrase regardless of how it was triggered.
func (e *Engine) sendLocked(prompt string) {
	if e.state == StateAwaitingReply || e.state == StatePlayingReply {
		return
	}
	if !strings.Contains(strings.ToLower(prompt), e.wakePhrase) {
		prompt = e.wakePhrase + " " + prompt
	}
	e.setStateLocked(StateAwaitingReply)
	e.gen++
	gen := e.gen
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	e.logger.Info("sending prompt", "length", len(prompt))
	go e.dispatch(ctx, gen, prompt)
}

func (e *Engine) dispatch(ctx context.Context, gen uint64, prompt string) {
	start := time.Now()
	audio, replyText, err := e.backend.SendPrompt(ctx, prompt)
	e.metrics.RecordPrompt(time.Since(start).Seconds(), err != nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen || e.state != StateAwaitingReply {
		e.logger.Debug("dropping stale prompt completion", "gen", gen)
		return
	}

	if err != nil {
		e.conversation = append(e.conversation, Interaction{
			ID:        uuid.New(),
			Prompt:    prompt,
			Errored:   true,
			CreatedAt: time.Now(),
		})
		e.lastError = backend.UserMessage(err)
		e.lastFailedPrompt = prompt
		e.logger.Error("prompt failed", "error", err)
		e.setStateLocked(StateIdle)
		return
	}

	e.conversation = append(e.conversation, Interaction{
		ID:         uuid.New(),
		Prompt:     prompt,
		ReplyAudio: audio,
		ReplyText:  replyText,
		CreatedAt:  time.Now(),
	})
	e.lastError = ""
	e.lastFailedPrompt = ""
	e.setStateLocked(StatePlayingReply)
	e.metrics.RecordPlayback()
	go e.play(ctx, gen, audio)
}

func (e *Engine) play(ctx context.Context, gen uint64, audio []byte) {
	err := e.player.Play(ctx, audio)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen || e.state != StatePlayingReply {
		return
	}
	if err != nil {
		e.lastError = "could not play the reply"
		e.logger.Error("playback failed", "error", err)
	}
	e.setStateLocked(StateIdle)
}

// forceIdleLocked is the fatal-error escape hatch: all capture stops,
// outstanding completions are invalidated, and the engine lands in Idle.
func (e *Engine) forceIdleLocked(msg string) {
	e.gen++
	_ = e.transcriber.Stop()
	e.lastError = msg
	e.setStateLocked(StateIdle)
}

func (e *Engine) setStateLocked(to State) {
	if e.state == to {
		return
	}
	// Pending text is only meaningful during active listening.
	if e.state == StateActiveListening {
		e.pending = ""
	}
	e.metrics.RecordTransition(e.state.String(), to.String())
	e.logger.Debug("state transition", "from", e.state.String(), "to", to.String())
	e.state = to
}
