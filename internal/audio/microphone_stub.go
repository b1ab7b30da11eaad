//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
)

// Microphone stub when portaudio is not available.
type Microphone struct {
	logger *slog.Logger
}

func NewMicrophone(sampleRate int, sink FrameSink, logger *slog.Logger) *Microphone {
	return &Microphone{logger: logger}
}

func (m *Microphone) Run(_ context.Context) error {
	return fmt.Errorf("audio: microphone not available: rebuild with -tags portaudio")
}
