package openai

import (
	"fmt"
	"strconv"

	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
)

// doneMarker terminates some Responses streams after the final event. It is
// not part of the event vocabulary and decodes to nothing.
const doneMarker = "[DONE]"

// translator converts one Responses stream into delta operations. Single
// use; holds the block map and whether a function call was seen, which
// decides the completion stop kind.
type translator struct {
	blocks          *provider.BlockMap
	sawFunctionCall bool
}

func newTranslator() *translator {
	return &translator{blocks: provider.NewBlockMap()}
}

func (t *translator) TranslateEvent(payload string) (provider.Translation, error) {
	if payload == doneMarker {
		return provider.Translation{}, nil
	}

	event, err := unmarshalStreamEvent(payload)
	if err != nil {
		return provider.Translation{}, fmt.Errorf("%w: %v", provider.ErrMalformedFrame, err)
	}

	switch event.Type {
	case "response.created":
		t.blocks.Append()
		return provider.Translation{
			Ops: []provider.DeltaOp{provider.Append(session.MessageResult{Type: session.BlockStart})},
		}, nil

	case "response.output_item.added":
		return t.onItemAdded(event)

	case "response.content_part.added":
		return t.onPartAdded(event)

	case "response.output_text.delta":
		return t.mergeDelta(partKey(event.ItemID, event.ContentIndex), provider.Patch{Text: event.Delta}), nil

	case "response.refusal.delta":
		return t.mergeDelta(partKey(event.ItemID, event.ContentIndex), provider.Patch{Refusal: event.Delta}), nil

	case "response.reasoning_text.delta":
		// Reasoning items never get content_part.added, so the thinking
		// block opens on first delta.
		key := partKey(event.ItemID, event.ContentIndex)
		if _, known := t.blocks.Resolve(key); !known {
			open := t.openBlock(key, session.MessageResult{Type: session.BlockThinking})
			merge := t.mergeDelta(key, provider.Patch{Thinking: event.Delta})
			return provider.Translation{Ops: append(open.Ops, merge.Ops...)}, nil
		}
		return t.mergeDelta(key, provider.Patch{Thinking: event.Delta}), nil

	case "response.function_call_arguments.delta":
		return t.mergeDelta(event.ItemID, provider.Patch{Input: event.Delta}), nil

	case "response.completed":
		return t.onCompleted(event), nil

	case "response.incomplete":
		return t.onIncomplete(event), nil

	case "response.failed":
		return provider.Translation{}, translateFailure(event)

	case "error":
		return provider.Translation{}, translateErrorEvent(event)

	case "response.in_progress",
		"response.output_item.done",
		"response.content_part.done",
		"response.output_text.done",
		"response.refusal.done",
		"response.reasoning_text.done",
		"response.function_call_arguments.done":
		return provider.Translation{}, nil

	default:
		return provider.Translation{}, &provider.UnexpectedMessageTypeError{Type: event.Type}
	}
}

func (t *translator) onItemAdded(event *streamEvent) (provider.Translation, error) {
	if event.Item == nil {
		return provider.Translation{}, fmt.Errorf("%w: output_item.added without item", provider.ErrMalformedFrame)
	}
	switch event.Item.Type {
	case "function_call":
		t.sawFunctionCall = true
		return t.openBlock(event.Item.ID, session.MessageResult{
			Type: session.BlockToolUse,
			ID:   event.Item.CallID,
			Name: event.Item.Name,
		}), nil
	case "message", "reasoning":
		// Content arrives via part/delta events keyed by item id.
		return provider.Translation{}, nil
	default:
		// Built-in tool calls and other item kinds are skipped; their
		// deltas miss the block map.
		return provider.Translation{}, nil
	}
}

func (t *translator) onPartAdded(event *streamEvent) (provider.Translation, error) {
	if event.Part == nil {
		return provider.Translation{}, fmt.Errorf("%w: content_part.added without part", provider.ErrMalformedFrame)
	}
	key := partKey(event.ItemID, event.ContentIndex)
	switch event.Part.Type {
	case "output_text":
		return t.openBlock(key, session.MessageResult{Type: session.BlockText, Text: event.Part.Text}), nil
	case "refusal":
		return t.openBlock(key, session.MessageResult{Type: session.BlockRefusal, Refusal: event.Part.Refusal}), nil
	default:
		return provider.Translation{}, nil
	}
}

func (t *translator) onCompleted(event *streamEvent) provider.Translation {
	stop := session.LogStop("Assistant has finished its turn.")
	if t.sawFunctionCall {
		stop = session.ToolUseStop()
	}
	out := provider.Translation{Stop: &stop}
	if event.Response != nil && event.Response.Usage != nil {
		out.Usage = &session.UsageDelta{
			InputTokens:  event.Response.Usage.InputTokens,
			OutputTokens: event.Response.Usage.OutputTokens,
		}
	}
	return out
}

func (t *translator) onIncomplete(event *streamEvent) provider.Translation {
	reason := ""
	if event.Response != nil && event.Response.IncompleteDetails != nil {
		reason = event.Response.IncompleteDetails.Reason
	}

	var stop session.StopInfo
	switch reason {
	case "max_output_tokens":
		stop = session.MessageStop("Response was cut off: the maximum output token limit was reached.", session.LevelWarning)
	case "content_filter":
		stop = session.MessageStop("Response was cut off by the content filter.", session.LevelError)
	default:
		stop = session.MessageStop(fmt.Sprintf("Response ended incomplete (%q).", reason), session.LevelError)
	}

	out := provider.Translation{Stop: &stop}
	if event.Response != nil && event.Response.Usage != nil {
		out.Usage = &session.UsageDelta{
			InputTokens:  event.Response.Usage.InputTokens,
			OutputTokens: event.Response.Usage.OutputTokens,
		}
	}
	return out
}

// openBlock opens a keyed block, emitting the append only the first time.
func (t *translator) openBlock(key string, block session.MessageResult) provider.Translation {
	if _, known := t.blocks.Resolve(key); known {
		return provider.Translation{}
	}
	t.blocks.Open(key)
	return provider.Translation{Ops: []provider.DeltaOp{provider.Append(block)}}
}

// mergeDelta resolves a keyed block and merges the patch; an unmapped key
// means a skipped item and produces nothing.
func (t *translator) mergeDelta(key string, patch provider.Patch) provider.Translation {
	offset, ok := t.blocks.Resolve(key)
	if !ok {
		return provider.Translation{}
	}
	return provider.Translation{Ops: []provider.DeltaOp{provider.MergeAt(offset, patch)}}
}

func partKey(itemID string, contentIndex int) string {
	return itemID + ":" + strconv.Itoa(contentIndex)
}

func translateFailure(event *streamEvent) error {
	if event.Response == nil || event.Response.Error == nil {
		return &provider.ExpectedError{StatusCode: 500, ErrorType: "server_error", Message: "response failed without error details"}
	}
	return &provider.ExpectedError{
		StatusCode: statusForErrorCode(event.Response.Error.Code),
		ErrorType:  event.Response.Error.Code,
		Message:    event.Response.Error.Message,
	}
}

func translateErrorEvent(event *streamEvent) error {
	code, message := event.Code, event.Message
	if event.Error != nil {
		code, message = event.Error.Code, event.Error.Message
	}
	return &provider.ExpectedError{
		StatusCode: statusForErrorCode(code),
		ErrorType:  code,
		Message:    message,
	}
}

func statusForErrorCode(code string) int {
	switch code {
	case "invalid_request_error", "invalid_prompt":
		return 400
	case "invalid_api_key", "authentication_error":
		return 401
	case "insufficient_quota":
		return 403
	case "model_not_found":
		return 404
	case "rate_limit_exceeded":
		return 429
	default:
		return 500
	}
}
