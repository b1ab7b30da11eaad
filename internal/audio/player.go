// Package audio owns the sound devices: a speaker that plays MP3 reply
// audio and a microphone that feeds PCM frames into speech capture. Both
// require the portaudio build tag; without it stubs keep the client
// runnable for development against the HTTP control surface alone.
package audio

import "context"

// Player plays one reply through the output device. Play blocks until
// playback finishes or ctx is canceled.
type Player interface {
	Play(ctx context.Context, mp3Data []byte) error
}

// FrameSink receives little-endian 16-bit mono PCM from the microphone.
type FrameSink func(pcm []byte) error
