package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KingLuiBoi/GWENApp/internal/permissions"
	"github.com/KingLuiBoi/GWENApp/internal/transcript"
)

type fakeTranscriber struct {
	mu       sync.Mutex
	events   chan transcript.Event
	calls    []string
	startErr error
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{events: make(chan transcript.Event, 16)}
}

func (f *fakeTranscriber) Start(mode transcript.CaptureMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.calls = append(f.calls, "start:"+mode.String())
	return nil
}

func (f *fakeTranscriber) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	return nil
}

func (f *fakeTranscriber) Events() <-chan transcript.Event { return f.events }

func (f *fakeTranscriber) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeSender struct {
	mu      sync.Mutex
	prompts []string
	audio   []byte
	text    string
	err     error
	block   chan struct{}
}

func (f *fakeSender) SendPrompt(_ context.Context, prompt string) ([]byte, string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	blk := f.block
	audio, text, err := f.audio, f.text, f.err
	f.mu.Unlock()
	if blk != nil {
		<-blk
	}
	return audio, text, err
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	err    error
}

func (f *fakePlayer) Play(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, data)
	return f.err
}

func newTestEngine(t *testing.T, tr *fakeTranscriber, sender *fakeSender, player *fakePlayer, mic bool) *Engine {
	t.Helper()
	e := NewEngine(tr, player, sender, permissions.Static{Microphone: mic}, nil, "hey gwen", nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Start(ctx)
	return e
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func (e *Engine) stateNow() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func TestWakePhrase_StopsDetectionBeforeCommandCapture(t *testing.T) {
	tr := newFakeTranscriber()
	sender := &fakeSender{audio: []byte{1}}
	e := newTestEngine(t, tr, sender, &fakePlayer{}, true)

	e.EnableWakeWord()
	waitFor(t, "wake listening", func() bool { return e.stateNow() == StateWakeWordListening })

	tr.events <- transcript.Event{Type: transcript.EventPartial, Text: "oh HEY GWEN please"}
	waitFor(t, "active listening", func() bool { return e.stateNow() == StateActiveListening })

	calls := tr.callLog()
	want := []string{"start:wake-word", "stop", "start:command"}
	if len(calls) != len(want) {
		t.Fatalf("unexpected call log %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: got %q want %q (full log %v)", i, calls[i], want[i], calls)
		}
	}
}

func TestWakePhrase_DetectedOncePerSession(t *testing.T) {
	tr := newFakeTranscriber()
	e := newTestEngine(t, tr, &fakeSender{}, &fakePlayer{}, true)

	e.EnableWakeWord()
	waitFor(t, "wake listening", func() bool { return e.stateNow() == StateWakeWordListening })

	tr.events <- transcript.Event{Type: transcript.EventPartial, Text: "hey gwen"}
	tr.events <- transcript.Event{Type: transcript.EventPartial, Text: "hey gwen what time is it"}
	waitFor(t, "active listening", func() bool { return e.stateNow() == StateActiveListening })
	waitFor(t, "pending text", func() bool { return e.Snapshot().PendingPrompt != "" })

	// The second partial updated the pending prompt instead of
	// re-triggering detection.
	calls := tr.callLog()
	starts := 0
	for _, c := range calls {
		if c == "start:command" {
			starts++
		}
	}
	if starts != 1 {
		t.Fatalf("expected exactly one command capture start, got log %v", calls)
	}
	if got := e.Snapshot().PendingPrompt; got != "hey gwen what time is it" {
		t.Fatalf("unexpected pending prompt %q", got)
	}
}

func TestBlankCapture_NeverSends(t *testing.T) {
	tr := newFakeTranscriber()
	sender := &fakeSender{}
	e := newTestEngine(t, tr, sender, &fakePlayer{}, true)

	e.StartManualCapture()
	waitFor(t, "active listening", func() bool { return e.stateNow() == StateActiveListening })

	tr.events <- transcript.Event{Type: transcript.EventPartial, Text: "   "}
	tr.events <- transcript.Event{Type: transcript.EventStopped}
	waitFor(t, "idle", func() bool { return e.stateNow() == StateIdle })

	if n := len(sender.sent()); n != 0 {
		t.Fatalf("expected no prompt sent, got %d", n)
	}
}

func TestTypedPrompt_BlankIsRejectedLocally(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, newFakeTranscriber(), sender, &fakePlayer{}, true)

	e.SubmitTypedPrompt("   ")
	if e.stateNow() != StateIdle {
		t.Fatalf("expected idle, got %v", e.stateNow())
	}
	if n := len(sender.sent()); n != 0 {
		t.Fatalf("expected no prompt sent, got %d", n)
	}
}

func TestSecondSendWhileAwaiting_IsNoOp(t *testing.T) {
	sender := &fakeSender{audio: []byte{1}, block: make(chan struct{})}
	e := newTestEngine(t, newFakeTranscriber(), sender, &fakePlayer{}, true)

	e.SubmitTypedPrompt("hello")
	waitFor(t, "awaiting reply", func() bool { return e.stateNow() == StateAwaitingReply })

	e.SubmitTypedPrompt("hello again")
	close(sender.block)
	waitFor(t, "idle", func() bool { return e.stateNow() == StateIdle })

	sent := sender.sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one send, got %v", sent)
	}
	if sent[0] != "hey gwen hello" {
		t.Fatalf("unexpected prompt %q", sent[0])
	}
}

func TestScenario_SpokenCommandRoundTrip(t *testing.T) {
	tr := newFakeTranscriber()
	audio := []byte{0xFF, 0xFB, 0x90}
	sender := &fakeSender{audio: audio, text: "Okay, I will remind you."}
	player := &fakePlayer{}
	e := newTestEngine(t, tr, sender, player, true)

	e.StartManualCapture()
	waitFor(t, "active listening", func() bool { return e.stateNow() == StateActiveListening })

	tr.events <- transcript.Event{Type: transcript.EventPartial, Text: "remind me to"}
	tr.events <- transcript.Event{Type: transcript.EventPartial, Text: "remind me to call mom"}
	waitFor(t, "pending text", func() bool { return e.Snapshot().PendingPrompt == "remind me to call mom" })

	e.StopManualCapture()
	waitFor(t, "idle after playback", func() bool { return e.stateNow() == StateIdle })

	sent := sender.sent()
	if len(sent) != 1 || sent[0] != "hey gwen remind me to call mom" {
		t.Fatalf("unexpected sends %v", sent)
	}

	snap := e.Snapshot()
	if len(snap.Conversation) != 1 {
		t.Fatalf("expected one interaction, got %d", len(snap.Conversation))
	}
	in := snap.Conversation[0]
	if in.Prompt != "hey gwen remind me to call mom" || in.Errored {
		t.Fatalf("unexpected interaction %+v", in)
	}
	if in.ReplyText != "Okay, I will remind you." {
		t.Fatalf("unexpected reply text %q", in.ReplyText)
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.played) != 1 || len(player.played[0]) != len(audio) {
		t.Fatalf("expected reply audio played once")
	}
}

func TestBackendFailure_AppendsErroredInteractionAndAllowsRetry(t *testing.T) {
	sender := &fakeSender{err: errors.New("dial tcp: connection refused")}
	e := newTestEngine(t, newFakeTranscriber(), sender, &fakePlayer{}, true)

	e.SubmitTypedPrompt("what time is it")
	waitFor(t, "idle after failure", func() bool {
		return e.stateNow() == StateIdle && len(e.Snapshot().Conversation) == 1
	})

	snap := e.Snapshot()
	if !snap.Conversation[0].Errored {
		t.Fatal("expected errored interaction")
	}
	if snap.LastError == "" {
		t.Fatal("expected a retained error message")
	}

	sender.mu.Lock()
	sender.err = nil
	sender.audio = []byte{1}
	sender.mu.Unlock()

	e.RetryLastFailedPrompt()
	waitFor(t, "idle after retry", func() bool {
		return e.stateNow() == StateIdle && len(e.Snapshot().Conversation) == 2
	})

	sent := sender.sent()
	if len(sent) != 2 || sent[0] != sent[1] {
		t.Fatalf("expected the same prompt resent, got %v", sent)
	}
	if e.Snapshot().LastError != "" {
		t.Fatal("expected error cleared after success")
	}
}

func TestPermissionDenied_BlocksListening(t *testing.T) {
	tr := newFakeTranscriber()
	e := newTestEngine(t, tr, &fakeSender{}, &fakePlayer{}, false)

	e.EnableWakeWord()
	waitFor(t, "permission block with error", func() bool {
		s := e.Snapshot()
		return s.State == StatePermissionBlocked.String() && s.LastError != ""
	})

	if len(tr.callLog()) != 0 {
		t.Fatalf("expected no capture calls, got %v", tr.callLog())
	}

	e.DismissError()
	if e.stateNow() != StateIdle {
		t.Fatalf("expected idle after dismissal, got %v", e.stateNow())
	}
}

func TestFatalProviderError_ForcesIdle(t *testing.T) {
	tr := newFakeTranscriber()
	e := newTestEngine(t, tr, &fakeSender{}, &fakePlayer{}, true)

	e.EnableWakeWord()
	waitFor(t, "wake listening", func() bool { return e.stateNow() == StateWakeWordListening })

	tr.events <- transcript.Event{Type: transcript.EventFatal, Err: errors.New("stream reset")}
	waitFor(t, "idle after fatal", func() bool { return e.stateNow() == StateIdle })

	if e.Snapshot().LastError == "" {
		t.Fatal("expected a surfaced error")
	}
}
