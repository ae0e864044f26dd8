package anthropic

import (
	"fmt"
	"strconv"

	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
)

// translator converts one Anthropic stream into delta operations. It is
// single-use: stream position state (block offsets, cumulative output
// tokens, pending stop reason) lives here between events.
type translator struct {
	blocks       *provider.BlockMap
	stopReason   string
	outputTokens int
}

func newTranslator() *translator {
	return &translator{blocks: provider.NewBlockMap()}
}

func (t *translator) TranslateEvent(payload string) (provider.Translation, error) {
	event, err := unmarshalStreamEvent(payload)
	if err != nil {
		return provider.Translation{}, fmt.Errorf("%w: %v", provider.ErrMalformedFrame, err)
	}

	switch event.Type {
	case "message_start":
		return t.onMessageStart(event), nil
	case "content_block_start":
		return t.onBlockStart(event)
	case "content_block_delta":
		return t.onBlockDelta(event)
	case "content_block_stop", "ping":
		return provider.Translation{}, nil
	case "message_delta":
		return t.onMessageDelta(event), nil
	case "message_stop":
		stop := t.stopInfo()
		return provider.Translation{Stop: &stop}, nil
	case "error":
		return provider.Translation{}, translateErrorEvent(event.Error)
	default:
		return provider.Translation{}, &provider.UnexpectedMessageTypeError{Type: event.Type}
	}
}

func (t *translator) onMessageStart(event *streamEvent) provider.Translation {
	t.blocks.Append()
	out := provider.Translation{
		Ops: []provider.DeltaOp{provider.Append(session.MessageResult{Type: session.BlockStart})},
	}
	if event.Message != nil {
		usage := event.Message.Usage
		t.outputTokens = usage.OutputTokens
		out.Usage = &session.UsageDelta{
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		}
	}
	return out
}

func (t *translator) onBlockStart(event *streamEvent) (provider.Translation, error) {
	if event.Index == nil || event.ContentBlock == nil {
		return provider.Translation{}, fmt.Errorf("%w: content_block_start without index or block", provider.ErrMalformedFrame)
	}
	var block session.MessageResult
	switch event.ContentBlock.Type {
	case "text":
		block = session.MessageResult{Type: session.BlockText, Text: event.ContentBlock.Text}
	case "thinking", "redacted_thinking":
		block = session.MessageResult{
			Type:      session.BlockThinking,
			Thinking:  event.ContentBlock.Thinking,
			Signature: event.ContentBlock.Signature,
		}
	case "tool_use", "server_tool_use":
		block = session.MessageResult{
			Type: session.BlockToolUse,
			ID:   event.ContentBlock.ID,
			Name: event.ContentBlock.Name,
		}
	default:
		// Unrecognized block kinds are skipped. Their deltas will miss
		// the block map and be skipped too.
		return provider.Translation{}, nil
	}
	t.blocks.Open(strconv.Itoa(*event.Index))
	return provider.Translation{Ops: []provider.DeltaOp{provider.Append(block)}}, nil
}

func (t *translator) onBlockDelta(event *streamEvent) (provider.Translation, error) {
	if event.Index == nil || event.Delta == nil {
		return provider.Translation{}, fmt.Errorf("%w: content_block_delta without index or delta", provider.ErrMalformedFrame)
	}
	offset, ok := t.blocks.Resolve(strconv.Itoa(*event.Index))
	if !ok {
		// Delta for a block we chose not to open.
		return provider.Translation{}, nil
	}
	var patch provider.Patch
	switch event.Delta.Type {
	case "text_delta":
		patch.Text = event.Delta.Text
	case "thinking_delta":
		patch.Thinking = event.Delta.Thinking
	case "signature_delta":
		patch.Signature = event.Delta.Signature
	case "input_json_delta":
		patch.Input = event.Delta.PartialJSON
	default:
		return provider.Translation{}, &provider.UnexpectedMessageTypeError{Type: event.Delta.Type}
	}
	return provider.Translation{Ops: []provider.DeltaOp{provider.MergeAt(offset, patch)}}, nil
}

func (t *translator) onMessageDelta(event *streamEvent) provider.Translation {
	var out provider.Translation
	if event.Delta != nil && event.Delta.StopReason != "" {
		t.stopReason = event.Delta.StopReason
	}
	if event.Usage != nil {
		// output_tokens is cumulative on the wire; callers accumulate, so
		// hand them the difference since the last report.
		delta := event.Usage.OutputTokens - t.outputTokens
		t.outputTokens = event.Usage.OutputTokens
		if delta != 0 {
			out.Usage = &session.UsageDelta{OutputTokens: delta}
		}
	}
	return out
}

func (t *translator) stopInfo() session.StopInfo {
	switch t.stopReason {
	case "end_turn":
		return session.LogStop("Assistant has finished its turn.")
	case "stop_sequence":
		return session.LogStop("Assistant stopped at a configured stop sequence.")
	case "pause_turn":
		return session.LogStop("Assistant paused a long-running turn.")
	case "tool_use":
		return session.ToolUseStop()
	case "max_tokens":
		return session.MessageStop("Response was cut off: the maximum output token limit was reached.", session.LevelWarning)
	case "refusal":
		return session.MessageStop("The model declined to continue this response.", session.LevelError)
	case "":
		return session.MessageStop("Stream ended before a stop reason was reported.", session.LevelError)
	default:
		return session.MessageStop(fmt.Sprintf("Stream ended with unrecognized stop reason %q.", t.stopReason), session.LevelError)
	}
}

// translateErrorEvent maps an in-stream error event onto the provider error
// taxonomy, recovering the HTTP status the error type stands for.
func translateErrorEvent(wireErr *wireError) error {
	if wireErr == nil {
		return &provider.ExpectedError{StatusCode: 500, ErrorType: "api_error", Message: "provider sent an empty error event"}
	}
	return &provider.ExpectedError{
		StatusCode: statusForErrorType(wireErr.Type),
		ErrorType:  wireErr.Type,
		Message:    wireErr.Message,
	}
}

func statusForErrorType(errorType string) int {
	switch errorType {
	case "invalid_request_error":
		return 400
	case "authentication_error":
		return 401
	case "permission_error":
		return 403
	case "not_found_error":
		return 404
	case "request_too_large":
		return 413
	case "rate_limit_error":
		return 429
	case "overloaded_error":
		return 529
	default:
		return 500
	}
}
