//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"log/slog"
)

// Speaker stub when portaudio is not available. Replies are discarded so
// the engine still walks its playback transition.
type Speaker struct {
	logger *slog.Logger
}

func NewSpeaker(logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{logger: logger}
}

func (s *Speaker) Play(_ context.Context, mp3Data []byte) error {
	s.logger.Info("discarding reply audio, built without portaudio", "bytes", len(mp3Data))
	return nil
}
