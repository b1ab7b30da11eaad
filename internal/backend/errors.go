package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call. Every error returned by Client
// carries exactly one Kind so callers can react without string matching.
type Kind int

const (
	// KindNetwork covers transport-level failures: connection refused,
	// timeouts, DNS errors. Retrying later may succeed.
	KindNetwork Kind = iota
	// KindServerRejected means the backend answered with a 4xx/5xx status.
	// Message carries the response body text.
	KindServerRejected
	// KindDecode means the backend answered 2xx but the body could not be
	// parsed into the expected shape.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network failure"
	case KindServerRejected:
		return "server rejected"
	case KindDecode:
		return "decode failure"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by Client methods.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("backend: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func networkErr(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

func rejectedErr(status int, body string) *Error {
	return &Error{Kind: KindServerRejected, Message: fmt.Sprintf("status %d: %s", status, body)}
}

func decodeErr(err error) *Error {
	return &Error{Kind: KindDecode, Err: err}
}

// KindOf reports the Kind of err when it is a backend Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}

// UserMessage renders err the way it should be surfaced to a person:
// the server's own message for rejections, a generic line otherwise.
func UserMessage(err error) string {
	var be *Error
	if errors.As(err, &be) {
		switch be.Kind {
		case KindServerRejected:
			return be.Message
		case KindDecode:
			return "the server returned an unreadable response"
		default:
			return "could not reach the server"
		}
	}
	return err.Error()
}
