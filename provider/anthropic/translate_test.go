package anthropic

import (
	"errors"
	"testing"

	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
)

// runStream feeds payloads through a fresh translator, applying operations to
// a response turn as the reconciler would, and returns the turn plus the
// accumulated usage.
func runStream(t *testing.T, payloads []string) (*session.ResponseTurn, session.TokenUsage) {
	t.Helper()

	translator := newTranslator()
	turn := session.NewResponseTurn()
	usage := session.TokenUsage{}

	for i, payload := range payloads {
		translation, err := translator.TranslateEvent(payload)
		if err != nil {
			t.Fatalf("event %d: unexpected error: %v", i, err)
		}
		if err := provider.ApplyOps(turn, translation.Ops); err != nil {
			t.Fatalf("event %d: apply: %v", i, err)
		}
		if translation.Usage != nil {
			usage.InputTokens += translation.Usage.InputTokens
			usage.OutputTokens += translation.Usage.OutputTokens
		}
		if translation.Stop != nil {
			turn.Close(*translation.Stop)
		}
	}
	return turn, usage
}

func TestTranslateTextStream(t *testing.T) {
	turn, usage := runStream(t, []string{
		`{"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":25,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"ping"}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":", world"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":12}}`,
		`{"type":"message_stop"}`,
	})

	if len(turn.Message) != 2 {
		t.Fatalf("expected 2 blocks (start, text), got %d", len(turn.Message))
	}
	if turn.Message[0].Type != session.BlockStart {
		t.Errorf("first block = %q, want start", turn.Message[0].Type)
	}
	if turn.Message[1].Type != session.BlockText || turn.Message[1].Text != "Hello, world" {
		t.Errorf("text block = %+v, want accumulated text", turn.Message[1])
	}

	if !turn.Closed() {
		t.Fatal("turn not closed after message_stop")
	}
	if turn.Stop.Type != session.StopLog {
		t.Errorf("stop type = %q, want log", turn.Stop.Type)
	}

	if usage.InputTokens != 25 {
		t.Errorf("input tokens = %d, want 25", usage.InputTokens)
	}
	// 1 at message_start plus a cumulative 12 at message_delta is 12 total.
	if usage.OutputTokens != 12 {
		t.Errorf("output tokens = %d, want 12", usage.OutputTokens)
	}
}

func TestTranslateThinkingThenText(t *testing.T) {
	turn, _ := runStream(t, []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":10,"output_tokens":0}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"thinking"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me see."}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"c2ln"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"text"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Answer."}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":9}}`,
		`{"type":"message_stop"}`,
	})

	if len(turn.Message) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(turn.Message))
	}
	thinking := turn.Message[1]
	if thinking.Type != session.BlockThinking || thinking.Thinking != "Let me see." || thinking.Signature != "c2ln" {
		t.Errorf("thinking block = %+v", thinking)
	}
	if turn.Message[2].Text != "Answer." {
		t.Errorf("text block = %+v", turn.Message[2])
	}
}

func TestTranslateToolUseStream(t *testing.T) {
	turn, _ := runStream(t, []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":30,"output_tokens":0}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_01","name":"get_weather","input":{}}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"Paris\"}"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":15}}`,
		`{"type":"message_stop"}`,
	})

	uses := turn.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("expected 1 tool use, got %d", len(uses))
	}
	use := uses[0]
	if use.ID != "toolu_01" || use.Name != "get_weather" {
		t.Errorf("tool use identity = %+v", use)
	}
	if use.Input != `{"city":"Paris"}` {
		t.Errorf("accumulated input = %q", use.Input)
	}
	if turn.Stop == nil || turn.Stop.Type != session.StopToolUse {
		t.Errorf("stop = %+v, want tool_use", turn.Stop)
	}
}

func TestTranslateMalformedFrame(t *testing.T) {
	for _, payload := range []string{
		`{"type":"content_block_delta","index":0`,
		`not json at all`,
		`{"no_type_field":true}`,
		`{"type":"content_block_start","index":0}`,
	} {
		translator := newTranslator()
		_, err := translator.TranslateEvent(payload)
		if !errors.Is(err, provider.ErrMalformedFrame) {
			t.Errorf("payload %q: error = %v, want ErrMalformedFrame", payload, err)
		}
	}
}

func TestTranslateUnknownEventType(t *testing.T) {
	translator := newTranslator()
	_, err := translator.TranslateEvent(`{"type":"content_block_foo","index":0}`)

	var unexpected *provider.UnexpectedMessageTypeError
	if !errors.As(err, &unexpected) {
		t.Fatalf("error = %v, want UnexpectedMessageTypeError", err)
	}
	if unexpected.Type != "content_block_foo" {
		t.Errorf("preserved type = %q", unexpected.Type)
	}
}

func TestTranslateUnknownDeltaType(t *testing.T) {
	translator := newTranslator()
	mustTranslate(t, translator, `{"type":"message_start","message":{"usage":{"input_tokens":1,"output_tokens":0}}}`)
	mustTranslate(t, translator, `{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`)

	_, err := translator.TranslateEvent(`{"type":"content_block_delta","index":0,"delta":{"type":"vibes_delta"}}`)
	var unexpected *provider.UnexpectedMessageTypeError
	if !errors.As(err, &unexpected) || unexpected.Type != "vibes_delta" {
		t.Fatalf("error = %v, want UnexpectedMessageTypeError(vibes_delta)", err)
	}
}

func TestTranslateSkipsUnknownBlockKinds(t *testing.T) {
	turn, _ := runStream(t, []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":5,"output_tokens":0}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"holographic_display"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"ignored"}}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"text"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"kept"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		`{"type":"message_stop"}`,
	})

	if len(turn.Message) != 2 {
		t.Fatalf("expected start + text only, got %d blocks", len(turn.Message))
	}
	if turn.Message[1].Text != "kept" {
		t.Errorf("text block = %+v", turn.Message[1])
	}
}

func TestTranslateErrorEvent(t *testing.T) {
	translator := newTranslator()
	_, err := translator.TranslateEvent(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)

	var expected *provider.ExpectedError
	if !errors.As(err, &expected) {
		t.Fatalf("error = %v, want ExpectedError", err)
	}
	if expected.StatusCode != 529 || expected.ErrorType != "overloaded_error" || expected.Message != "Overloaded" {
		t.Errorf("translated error = %+v", expected)
	}
}

func TestStopReasonMapping(t *testing.T) {
	cases := []struct {
		reason   string
		wantType session.StopKind
		wantLvl  string
	}{
		{"end_turn", session.StopLog, ""},
		{"stop_sequence", session.StopLog, ""},
		{"tool_use", session.StopToolUse, ""},
		{"max_tokens", session.StopMessage, session.LevelWarning},
		{"refusal", session.StopMessage, session.LevelError},
		{"quantum_entanglement", session.StopMessage, session.LevelError},
		{"", session.StopMessage, session.LevelError},
	}

	for _, tc := range cases {
		translator := newTranslator()
		translator.stopReason = tc.reason
		stop := translator.stopInfo()
		if stop.Type != tc.wantType || stop.Level != tc.wantLvl {
			t.Errorf("reason %q: got %+v, want type=%q level=%q", tc.reason, stop, tc.wantType, tc.wantLvl)
		}
	}
}

func TestUsageDifferencing(t *testing.T) {
	translator := newTranslator()

	first := mustTranslate(t, translator, `{"type":"message_start","message":{"usage":{"input_tokens":100,"output_tokens":3}}}`)
	if first.Usage == nil || first.Usage.OutputTokens != 3 {
		t.Fatalf("message_start usage = %+v", first.Usage)
	}

	second := mustTranslate(t, translator, `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":50}}`)
	if second.Usage == nil || second.Usage.OutputTokens != 47 {
		t.Fatalf("message_delta usage = %+v, want differenced 47", second.Usage)
	}
}

func mustTranslate(t *testing.T, translator *translator, payload string) provider.Translation {
	t.Helper()
	translation, err := translator.TranslateEvent(payload)
	if err != nil {
		t.Fatalf("translate %q: %v", payload, err)
	}
	return translation
}
