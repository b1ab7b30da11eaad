//go:build portaudio
// +build portaudio

package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/go-mp3"
)

// Speaker plays MP3 reply audio on the default output device. Playbacks
// are serialized; the voice engine never overlaps them anyway, the mutex
// guards against misuse from the control API.
type Speaker struct {
	logger *slog.Logger
	mu     sync.Mutex
}

func NewSpeaker(logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{logger: logger}
}

func (s *Speaker) Play(ctx context.Context, mp3Data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		return fmt.Errorf("audio: decoding mp3: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	// go-mp3 always yields 16-bit stereo.
	const framesPerBuffer = 1024
	out := make([]int16, framesPerBuffer*2)
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(dec.SampleRate()), framesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("audio: opening output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("audio: starting output stream: %w", err)
	}
	defer stream.Stop()

	s.logger.Info("playback started", "bytes", len(mp3Data), "sampleRate", dec.SampleRate())

	raw := make([]byte, len(out)*2)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := io.ReadFull(dec, raw)
		if err == io.EOF {
			return nil
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("audio: reading pcm: %w", err)
		}

		for i := range out {
			out[i] = 0
		}
		for i := 0; i+1 < n; i += 2 {
			out[i/2] = int16(binary.LittleEndian.Uint16(raw[i : i+2]))
		}
		if werr := stream.Write(); werr != nil {
			return fmt.Errorf("audio: writing to device: %w", werr)
		}
		if err == io.ErrUnexpectedEOF {
			return nil
		}
	}
}
