package engine

import (
	"context"
	"fmt"

	"github.com/turnwire/turnwire/internal/jsonx"
	"github.com/turnwire/turnwire/session"
)

// rejectedMessage is the tool result recorded when the user declines an
// invocation. It is carried to the provider as an error result so the model
// knows the call did not run.
const rejectedMessage = "User rejected tool use"

// Grant executes a pending tool invocation and records its result. Granting
// an already-done turn is a no-op, so a grant racing a reject (or a repeated
// grant) never overwrites the recorded outcome. Once the gate has no pending
// turns left the conversation continues automatically.
func (e *Engine) Grant(ctx context.Context, sessionID, useID string) error {
	s, toolTurn, err := e.loadToolTurn(ctx, sessionID, useID)
	if err != nil {
		return err
	}
	if toolTurn.Done {
		return nil
	}
	if e.host == nil {
		return fmt.Errorf("engine: no tool host configured to run %q", toolTurn.ToolName)
	}

	args := jsonx.ParseObjectLenient(toolTurn.RequestContent)
	output, execErr := e.host.Execute(ctx, toolTurn.ToolName, args)

	// Execution may have taken a while; re-read so a reject that landed in
	// the meantime wins and the executed result is discarded.
	s, toolTurn, err = e.loadToolTurn(ctx, sessionID, useID)
	if err != nil {
		return err
	}
	if toolTurn.Done {
		return nil
	}

	if execErr != nil {
		toolTurn.Complete(true, execErr.Error(), true)
	} else {
		toolTurn.Complete(true, output, false)
	}
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		return fmt.Errorf("engine: persist tool result: %w", err)
	}

	return e.maybeContinue(ctx, s)
}

// Reject records a declined tool invocation without ever touching the tool
// host. No-op when the turn is already done.
func (e *Engine) Reject(ctx context.Context, sessionID, useID string) error {
	s, toolTurn, err := e.loadToolTurn(ctx, sessionID, useID)
	if err != nil {
		return err
	}
	if toolTurn.Done {
		return nil
	}

	toolTurn.Complete(false, rejectedMessage, true)
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		return fmt.Errorf("engine: persist tool rejection: %w", err)
	}

	return e.maybeContinue(ctx, s)
}

func (e *Engine) loadToolTurn(ctx context.Context, sessionID, useID string) (*session.Session, *session.ToolTurn, error) {
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: load session: %w", err)
	}
	toolTurn := s.ToolTurn(useID)
	if toolTurn == nil {
		return nil, nil, fmt.Errorf("engine: no tool turn %q in session %s", useID, sessionID)
	}
	return s, toolTurn, nil
}

// maybeContinue resumes the conversation when the open tool gate is fully
// resolved: the last response stopped for tool use, every gated tool turn is
// done, and nothing was appended after the gate. The continuation sends the
// session as-is; the done tool turns carry the results, no new request turn
// is synthesized.
func (e *Engine) maybeContinue(ctx context.Context, s *session.Session) error {
	last := s.LastResponse()
	if last == nil || last.Stop == nil || last.Stop.Type != session.StopToolUse {
		return nil
	}
	if len(s.Turns) == 0 {
		return nil
	}
	if _, ok := s.Turns[len(s.Turns)-1].(*session.ToolTurn); !ok {
		return nil
	}
	if len(pendingGate(s)) > 0 {
		return nil
	}

	prov, err := e.registry.Get(s.Provider)
	if err != nil {
		return err
	}
	cfg := prov.DefaultModelConfig()
	if s.ModelID != "" {
		cfg.ModelID = s.ModelID
	}

	if !e.acquire(s.ID) {
		// A send is already driving this session; it will observe the
		// resolved gate itself. The tool result is already recorded, so the
		// grant or reject still succeeded.
		return nil
	}
	streamErr := e.stream(ctx, s, prov, cfg)
	e.release(s.ID)
	if streamErr != nil {
		return streamErr
	}
	return e.afterStream(ctx, s.ID, prov, cfg)
}

// pendingGate returns the use ids of not-yet-done tool turns opened by the
// most recent response.
func pendingGate(s *session.Session) []string {
	gateOpen := false
	var pending []string
	for _, turn := range s.Turns {
		switch t := turn.(type) {
		case *session.ResponseTurn:
			gateOpen = t.Stop != nil && t.Stop.Type == session.StopToolUse
			pending = pending[:0]
		case *session.ToolTurn:
			if gateOpen && !t.Done {
				pending = append(pending, t.UseID)
			}
		default:
			gateOpen = false
			pending = pending[:0]
		}
	}
	if !gateOpen {
		return nil
	}
	return pending
}
