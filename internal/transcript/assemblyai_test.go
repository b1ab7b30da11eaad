package transcript

import (
	"encoding/binary"
	"testing"
	"time"
)

func loudFrame(samples int, amplitude uint16) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:(i+1)*2], amplitude)
	}
	return buf
}

func TestDetectVoiceActivity_SetsLastVoiceOnLoudFrame(t *testing.T) {
	sess := &session{lastVoice: time.Now().Add(-time.Minute)}
	sess.detectVoiceActivity(loudFrame(160, 3000))
	if time.Since(sess.lastVoice) > time.Second {
		t.Fatal("expected lastVoice to advance on a loud frame")
	}
}

func TestDetectVoiceActivity_IgnoresQuietFrame(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	sess := &session{lastVoice: past}
	sess.detectVoiceActivity(loudFrame(160, 10))
	if !sess.lastVoice.Equal(past) {
		t.Fatal("expected lastVoice unchanged on a quiet frame")
	}
}

func TestDetectVoiceActivity_IgnoresShortFrame(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	sess := &session{lastVoice: past}
	sess.detectVoiceActivity(loudFrame(10, 3000))
	if !sess.lastVoice.Equal(past) {
		t.Fatal("expected frames under 10ms to be skipped")
	}
}

func TestHelpers_LastWordAndContinuation(t *testing.T) {
	if lastWord("") != "" {
		t.Fatalf("lastWord empty mismatch")
	}
	if lastWord("hi there!") != "there" {
		t.Fatalf("lastWord basic mismatch")
	}
	if lastWord("Remind me to") != "to" {
		t.Fatalf("lastWord lowering mismatch")
	}
	if !isContinuationLikely("we should and") {
		t.Fatalf("expected continuation likely when last word is 'and'")
	}
	if isContinuationLikely("complete sentence.") {
		t.Fatalf("did not expect continuation likely")
	}
}

func TestStart_RequiresAPIKey(t *testing.T) {
	s := NewAssemblyAIService("", 16000, nil)
	if err := s.Start(ModeWakeWord); err == nil {
		t.Fatal("expected error with empty API key")
	}
}

func TestSendPCM_NoSessionIsNoop(t *testing.T) {
	s := NewAssemblyAIService("key", 16000, nil)
	if err := s.SendPCM16KLE(loudFrame(160, 3000)); err != nil {
		t.Fatalf("expected frames between sessions to drop silently, got %v", err)
	}
}

func TestStop_NoSessionIsNoop(t *testing.T) {
	s := NewAssemblyAIService("key", 16000, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("stop without session: %v", err)
	}
}

func TestFinalizeNow_EmitsFinalThenStoppedOnce(t *testing.T) {
	s := NewAssemblyAIService("key", 16000, nil)
	sess := &session{
		mode:   ModeCommand,
		stopCh: make(chan struct{}),
		latest: "  remind me to call mom  ",
	}
	// shutdown writes to the conn; stub it out by pre-firing stopOnce.
	sess.stopOnce.Do(func() { close(sess.stopCh) })

	s.finalizeNow(sess)
	s.finalizeNow(sess)

	ev := <-s.events
	if ev.Type != EventFinal || ev.Text != "remind me to call mom" {
		t.Fatalf("expected trimmed final first, got %+v", ev)
	}
	ev = <-s.events
	if ev.Type != EventStopped {
		t.Fatalf("expected stopped second, got %+v", ev)
	}
	select {
	case ev = <-s.events:
		t.Fatalf("expected no further events, got %+v", ev)
	default:
	}
}

func TestFinalizeNow_BlankTranscriptSkipsFinal(t *testing.T) {
	s := NewAssemblyAIService("key", 16000, nil)
	sess := &session{mode: ModeCommand, stopCh: make(chan struct{}), latest: "   "}
	sess.stopOnce.Do(func() { close(sess.stopCh) })

	s.finalizeNow(sess)

	ev := <-s.events
	if ev.Type != EventStopped {
		t.Fatalf("expected only a stop event for blank capture, got %+v", ev)
	}
}
