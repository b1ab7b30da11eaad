//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Microphone reads mono PCM from the default input device and pushes
// each frame into a sink, normally the speech capture feed.
type Microphone struct {
	sampleRate int
	sink       FrameSink
	logger     *slog.Logger
}

func NewMicrophone(sampleRate int, sink FrameSink, logger *slog.Logger) *Microphone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Microphone{sampleRate: sampleRate, sink: sink, logger: logger}
}

// Run captures until ctx is canceled. The device stays open the whole
// time; capture sessions gate what happens to the frames downstream.
func (m *Microphone) Run(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	const framesPerBuffer = 1024
	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, buffer)
	if err != nil {
		return fmt.Errorf("audio: opening input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("audio: starting input stream: %w", err)
	}
	defer stream.Stop()

	m.logger.Info("microphone started", "sampleRate", m.sampleRate)

	pcm := make([]byte, framesPerBuffer*2)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return fmt.Errorf("audio: reading from device: %w", err)
		}
		for i, sample := range buffer {
			binary.LittleEndian.PutUint16(pcm[i*2:(i+1)*2], uint16(sample))
		}
		frame := make([]byte, len(pcm))
		copy(frame, pcm)
		if err := m.sink(frame); err != nil {
			m.logger.Warn("frame sink rejected audio", "error", err)
		}
	}
}
