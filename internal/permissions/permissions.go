// Package permissions abstracts the platform permission prompts the
// engines depend on. The engines only ever see the Authorizer interface,
// so tests and headless deployments can substitute their own grants.
package permissions

import "context"

// Status is the outcome of a location permission request.
type Status int

const (
	StatusNotDetermined Status = iota
	StatusGranted
	StatusDenied
)

func (s Status) String() string {
	switch s {
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	default:
		return "not determined"
	}
}

// Authorizer asks the platform for capability grants.
type Authorizer interface {
	// RequestMicrophoneAndSpeech asks for microphone capture plus speech
	// recognition in one prompt, as the two are useless apart.
	RequestMicrophoneAndSpeech(ctx context.Context) (bool, error)
	// RequestLocation asks for coordinate access.
	RequestLocation(ctx context.Context) (Status, error)
}

// Static answers permission requests from fixed configuration. Headless
// deployments grant via config; there is no OS prompt to drive.
type Static struct {
	Microphone bool
	Location   bool
}

func (s Static) RequestMicrophoneAndSpeech(_ context.Context) (bool, error) {
	return s.Microphone, nil
}

func (s Static) RequestLocation(_ context.Context) (Status, error) {
	if s.Location {
		return StatusGranted, nil
	}
	return StatusDenied, nil
}
