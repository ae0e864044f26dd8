package provider

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame marks a frame payload that could not be parsed. Frames
// carrying it are logged and skipped; the stream continues.
var ErrMalformedFrame = errors.New("provider: malformed frame")

// ExpectedError is a structured error returned by the provider API, either
// as a non-2xx HTTP response with a JSON error envelope or as a typed error
// event mid-stream. It is safe to surface to the user.
type ExpectedError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *ExpectedError) Error() string {
	return fmt.Sprintf("provider error %d (%s): %s", e.StatusCode, e.ErrorType, e.Message)
}

// ServerSideHTTPError is a transport-level failure without a structured
// provider error envelope (non-JSON body, gateway noise).
type ServerSideHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ServerSideHTTPError) Error() string {
	return fmt.Sprintf("unexpected HTTP error %d: %s", e.StatusCode, e.Body)
}

// SessionTranslationError reports a session turn that cannot be expressed in
// a provider's request format.
type SessionTranslationError struct {
	Reason string
}

func (e *SessionTranslationError) Error() string {
	return "session cannot be translated: " + e.Reason
}

// UnexpectedMessageTypeError reports a stream event whose type is outside
// the provider's known vocabulary. It is a forward-compatibility signal, not
// a user-facing condition; the unrecognized type is preserved for telemetry.
type UnexpectedMessageTypeError struct {
	Type string
}

func (e *UnexpectedMessageTypeError) Error() string {
	return fmt.Sprintf("unexpected message type %q", e.Type)
}
