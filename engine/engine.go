// Package engine drives streaming cycles: it sends the session to a
// provider, folds the translated delta operations back into the open
// response turn, persists progress after every frame, and runs the tool
// grant/reject flow including automatic continuation once every gated tool
// has a result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/turnwire/turnwire/internal/httpx"
	"github.com/turnwire/turnwire/internal/sse"
	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
	"github.com/turnwire/turnwire/tools"
)

// ErrSendInFlight is returned when a send targets a session that already has
// an open streaming cycle.
var ErrSendInFlight = errors.New("engine: session already has a stream in flight")

// SendRequest is one user send.
type SendRequest struct {
	SessionID string
	// Provider selects the provider for this send. Empty reuses the
	// session's current provider.
	Provider string
	// Model overrides the provider's default model config when ModelID is
	// set.
	Model   provider.ModelConfig
	Content []session.RequestContent
}

// Engine owns the streaming loop. One engine serves many sessions, but at
// most one streaming cycle per session runs at a time.
type Engine struct {
	store    session.Store
	registry *provider.Registry
	host     tools.Host
	defs     []tools.Definition
	auto     bool
	log      zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithToolHost attaches the executor granted tool invocations run on, and
// the definitions declared to providers.
func WithToolHost(host tools.Host, defs []tools.Definition) Option {
	return func(e *Engine) {
		e.host = host
		e.defs = defs
	}
}

// WithAutoGrant makes the engine grant every gated tool invocation itself
// instead of waiting for explicit Grant/Reject calls.
func WithAutoGrant() Option {
	return func(e *Engine) { e.auto = true }
}

// WithLogger replaces the default nop logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New builds an engine over a store and a provider registry.
func New(store session.Store, registry *provider.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: registry,
		log:      zerolog.Nop(),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send appends a request turn and runs one streaming cycle to completion,
// including the tool flow when auto-grant is on. The session is created when
// the id is unknown. Send blocks until the cycle (and any auto-granted
// continuation) finishes; concurrent sends to the same session fail fast
// with ErrSendInFlight.
func (e *Engine) Send(ctx context.Context, req SendRequest) error {
	s, err := e.store.Get(ctx, req.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		s = session.New(req.SessionID)
	} else if err != nil {
		return fmt.Errorf("engine: load session: %w", err)
	}

	if req.Provider != "" {
		s.Provider = req.Provider
	}
	if req.Model.ModelID != "" {
		s.ModelID = req.Model.ModelID
	}
	prov, err := e.registry.Get(s.Provider)
	if err != nil {
		return err
	}

	if !e.acquire(s.ID) {
		return ErrSendInFlight
	}

	s.Turns = append(s.Turns, session.NewRequestTurn(req.Content))
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		e.release(s.ID)
		return fmt.Errorf("engine: persist request turn: %w", err)
	}

	streamErr := e.stream(ctx, s, prov, e.modelConfig(prov, req.Model))
	e.release(s.ID)
	if streamErr != nil {
		return streamErr
	}

	return e.afterStream(ctx, s.ID, prov, e.modelConfig(prov, req.Model))
}

// stream runs one streaming cycle against an already-loaded session: append
// the open response turn, send, fold frames, close the turn. The caller
// holds the inflight slot.
func (e *Engine) stream(ctx context.Context, s *session.Session, prov provider.Provider, cfg provider.ModelConfig) error {
	turn := session.NewResponseTurn()
	s.Turns = append(s.Turns, turn)
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		return fmt.Errorf("engine: persist response turn: %w", err)
	}

	body, err := prov.SendMessage(ctx, s, cfg, e.defs)
	if err != nil {
		e.closeWith(ctx, s, turn, stopForError(err))
		return err
	}
	defer httpx.CloseQuietly(body)

	translator := prov.NewTranslator()
	for payload, readErr := range sse.Frames(body) {
		if readErr != nil {
			if ctx.Err() != nil {
				e.closeWith(ctx, s, turn, session.MessageStop("Stream aborted before completion.", session.LevelInfo))
				return ctx.Err()
			}
			e.closeWith(ctx, s, turn, session.MessageStop("Connection to the provider was lost mid-stream.", session.LevelError))
			return fmt.Errorf("engine: read stream: %w", readErr)
		}

		translation, err := translator.TranslateEvent(payload)
		if err != nil {
			if errors.Is(err, provider.ErrMalformedFrame) {
				e.log.Warn().Err(err).Str("session", s.ID).Msg("skipping malformed frame")
				continue
			}
			e.closeWith(ctx, s, turn, stopForError(err))
			return err
		}

		if len(translation.Ops) == 0 && translation.Stop == nil && translation.Usage == nil {
			continue
		}
		if err := provider.ApplyOps(turn, translation.Ops); err != nil {
			e.closeWith(ctx, s, turn, session.MessageStop("Internal error while assembling the response.", session.LevelError))
			return err
		}
		if translation.Usage != nil {
			session.AddUsage(s, *translation.Usage)
		}
		if translation.Stop != nil {
			turn.Close(*translation.Stop)
		}

		s.Touch()
		if err := e.store.Put(ctx, s); err != nil {
			// Close is set-once, so a stop already folded in this frame
			// survives. The retry inside closeWith is best effort.
			e.closeWith(ctx, s, turn, session.MessageStop("Failed to save streaming progress.", session.LevelError))
			return fmt.Errorf("engine: persist delta: %w", err)
		}
	}

	if !turn.Closed() {
		e.closeWith(ctx, s, turn, session.MessageStop("Stream ended without a stop event.", session.LevelError))
		return errors.New("engine: stream ended without a stop event")
	}

	if turn.Stop.Type == session.StopToolUse {
		return e.openToolGate(ctx, s, turn)
	}
	return nil
}

// openToolGate appends one pending tool turn per tool_use block of the just
// closed response. Granting and continuation happen outside the streaming
// cycle.
func (e *Engine) openToolGate(ctx context.Context, s *session.Session, turn *session.ResponseTurn) error {
	for _, use := range turn.ToolUses() {
		s.Turns = append(s.Turns, session.NewToolTurn(use.ID, use.Name, use.Input))
	}
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		return fmt.Errorf("engine: persist tool gate: %w", err)
	}
	return nil
}

// afterStream runs the post-cycle tool flow: under auto-grant it executes
// every pending gated tool, which in turn triggers continuation once the
// gate is fully resolved.
func (e *Engine) afterStream(ctx context.Context, sessionID string, prov provider.Provider, cfg provider.ModelConfig) error {
	if !e.auto {
		return nil
	}

	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("engine: reload session: %w", err)
	}
	for _, use := range pendingGate(s) {
		if err := e.Grant(ctx, sessionID, use); err != nil {
			return err
		}
	}
	return nil
}

// closeWith closes the turn and persists, best effort: a failed stop is
// still a stop even when the write does not land.
func (e *Engine) closeWith(ctx context.Context, s *session.Session, turn *session.ResponseTurn, stop session.StopInfo) {
	turn.Close(stop)
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		e.log.Error().Err(err).Str("session", s.ID).Msg("persist stop")
	}
}

func (e *Engine) modelConfig(prov provider.Provider, requested provider.ModelConfig) provider.ModelConfig {
	if requested.ModelID == "" {
		return prov.DefaultModelConfig()
	}
	return requested
}

func (e *Engine) acquire(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[sessionID] {
		return false
	}
	e.inflight[sessionID] = true
	return true
}

func (e *Engine) release(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, sessionID)
}

// stopForError renders a terminal stream error as the closed turn's stop.
func stopForError(err error) session.StopInfo {
	var expected *provider.ExpectedError
	if errors.As(err, &expected) {
		return session.MessageStop(expected.Message, session.LevelError)
	}
	var unexpected *provider.UnexpectedMessageTypeError
	if errors.As(err, &unexpected) {
		return session.MessageStop("Provider sent a message this client does not understand.", session.LevelError)
	}
	var translation *provider.SessionTranslationError
	if errors.As(err, &translation) {
		return session.MessageStop("This conversation cannot be sent in its current state.", session.LevelError)
	}
	return session.MessageStop("Request to the provider failed.", session.LevelError)
}
