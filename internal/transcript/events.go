package transcript

// EventType tags a capture event delivered to the voice engine.
type EventType int

const (
	// EventPartial carries the latest full running transcript of the
	// current utterance. Emitted repeatedly while speech is recognized.
	EventPartial EventType = iota
	// EventFinal carries the settled transcript once the utterance is
	// considered complete.
	EventFinal
	// EventStopped signals that the recording-active flag flipped to
	// false on the provider side (end of speech or stream close). It is
	// not emitted in response to Stop; the caller already knows.
	EventStopped
	// EventFatal signals an unrecoverable provider error. The session is
	// dead and must be restarted.
	EventFatal
)

func (t EventType) String() string {
	switch t {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventStopped:
		return "stopped"
	case EventFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Event is one observation from a capture session.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// CaptureMode selects what a capture session is for.
type CaptureMode int

const (
	// ModeWakeWord keeps the session open indefinitely; transcripts are
	// probes for the wake phrase and never finalized by silence.
	ModeWakeWord CaptureMode = iota
	// ModeCommand treats the transcript as a user command and finalizes
	// it after a silence window.
	ModeCommand
)

func (m CaptureMode) String() string {
	if m == ModeWakeWord {
		return "wake-word"
	}
	return "command"
}
