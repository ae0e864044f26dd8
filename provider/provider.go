// Package provider defines the capability surface an LLM provider
// implementation must satisfy, the normalized delta-operation vocabulary its
// stream translators emit, and the error taxonomy shared by all of them.
// Concrete providers live in the sibling packages provider/anthropic and
// provider/openai; everything downstream of a translator only ever sees
// normalized session types.
package provider

import (
	"context"
	"io"

	"github.com/turnwire/turnwire/session"
	"github.com/turnwire/turnwire/tools"
)

// ModelInfo describes one model discovered from a provider's list API.
type ModelInfo struct {
	ID          string
	DisplayName string
}

// ModelConfig selects a model and its generation limits for one send.
type ModelConfig struct {
	ModelID         string
	MaxOutputTokens int
	Temperature     float64
}

// Translation is the outcome of translating one decoded frame: zero or more
// delta operations against the open response turn, an optional stop (which
// closes the turn), and an optional usage delta.
type Translation struct {
	Ops   []DeltaOp
	Stop  *session.StopInfo
	Usage *session.UsageDelta
}

// Translator maps one provider's raw stream events into Translations. A
// translator instance is scoped to a single streaming cycle: it owns the
// content-index map for the in-flight response and must not be reused.
type Translator interface {
	// TranslateEvent translates one decoded frame payload.
	//
	// Error contract: a malformed payload returns an error wrapping
	// ErrMalformedFrame (callers log and skip the frame); an event whose
	// type is outside the provider's known vocabulary returns
	// *UnexpectedMessageTypeError; a provider error envelope returns
	// *ExpectedError. The latter two terminate the stream.
	TranslateEvent(payload string) (Translation, error)
}

// Provider is implemented once per provider shape. Implementations hold no
// shared mutable state beyond their configuration (API key, base URL,
// HTTP client); per-stream state lives in the Translator.
type Provider interface {
	// ID is the registry key ("anthropic", "openai", ...).
	ID() string

	// SendMessage translates the session, POSTs the streaming request and
	// returns the open response body for frame decoding. The caller must
	// close the body. Pre-stream failures (auth, translation, transport,
	// non-2xx) are returned as errors from this package's taxonomy.
	SendMessage(ctx context.Context, s *session.Session, cfg ModelConfig, defs []tools.Definition) (io.ReadCloser, error)

	// NewTranslator returns a fresh per-stream translator.
	NewTranslator() Translator

	// TranslateSession renders the session's turns into the provider's
	// request body. A tool turn that is not yet done cannot be expressed
	// and returns *SessionTranslationError.
	TranslateSession(s *session.Session, cfg ModelConfig, defs []tools.Definition) ([]byte, error)

	// TranslateToolSchema renders tool definitions into the provider's
	// tool declaration format.
	TranslateToolSchema(defs []tools.Definition) any

	// Models lists the models available to the configured credentials.
	Models(ctx context.Context) ([]ModelInfo, error)

	// DefaultModelConfig returns the provider's default model selection.
	DefaultModelConfig() ModelConfig
}
