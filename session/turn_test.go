package session

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTurnsRoundTrip(t *testing.T) {
	s := New("s1")
	s.Turns = append(s.Turns, NewRequestTurn([]RequestContent{TextContent("hello")}))

	response := NewResponseTurn()
	response.Message = []*MessageResult{
		{Type: BlockStart},
		{Type: BlockThinking, Thinking: "hmm", Signature: "c2ln"},
		{Type: BlockText, Text: "hi"},
		{Type: BlockToolUse, ID: "toolu_1", Name: "get_weather", Input: `{"city":"Paris"}`},
	}
	response.Close(ToolUseStop())
	s.Turns = append(s.Turns, response)

	toolTurn := NewToolTurn("toolu_1", "get_weather", `{"city":"Paris"}`)
	toolTurn.Complete(true, "18C", false)
	s.Turns = append(s.Turns, toolTurn)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	decoded := &Session{}
	if err := json.Unmarshal(data, decoded); err != nil {
		t.Fatal(err)
	}

	if len(decoded.Turns) != 3 {
		t.Fatalf("turns = %d", len(decoded.Turns))
	}
	if _, ok := decoded.Turns[0].(*RequestTurn); !ok {
		t.Errorf("turn 0 decoded as %T", decoded.Turns[0])
	}
	r, ok := decoded.Turns[1].(*ResponseTurn)
	if !ok {
		t.Fatalf("turn 1 decoded as %T", decoded.Turns[1])
	}
	if len(r.Message) != 4 || r.Message[3].Input != `{"city":"Paris"}` {
		t.Errorf("response blocks = %+v", r.Message)
	}
	if r.Stop == nil || r.Stop.Type != StopToolUse {
		t.Errorf("stop = %+v", r.Stop)
	}
	tt, ok := decoded.Turns[2].(*ToolTurn)
	if !ok || !tt.Done || tt.ResponseContent != "18C" {
		t.Errorf("tool turn = %+v", decoded.Turns[2])
	}
}

func TestTurnsUnknownTypeRejected(t *testing.T) {
	var turns Turns
	err := json.Unmarshal([]byte(`[{"type":"interpretive_dance"}]`), &turns)
	if err == nil {
		t.Fatal("expected error for unknown turn type")
	}
}

func TestPendingToolTurnOmitsCompletionFields(t *testing.T) {
	pending := NewToolTurn("toolu_1", "get_weather", "{}")
	data, err := json.Marshal(pending)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "responseContent") || strings.Contains(string(data), "isError") {
		t.Errorf("pending turn serialized completion fields: %s", data)
	}

	pending.Complete(true, "", true)
	data, err = json.Marshal(pending)
	if err != nil {
		t.Fatal(err)
	}
	// Once done the fields are always present, even when zero-valued.
	if !strings.Contains(string(data), "responseContent") || !strings.Contains(string(data), "isError") {
		t.Errorf("done turn missing completion fields: %s", data)
	}
}

func TestToolTurnCompleteIsSetOnce(t *testing.T) {
	turn := NewToolTurn("toolu_1", "get_weather", "{}")
	turn.Complete(false, "User rejected tool use", true)
	turn.Complete(true, "18C", false)

	if turn.Granted || turn.ResponseContent != "User rejected tool use" {
		t.Errorf("second Complete overwrote the first: %+v", turn)
	}
}

func TestResponseTurnCloseIsSetOnce(t *testing.T) {
	turn := NewResponseTurn()
	turn.Close(LogStop("first"))
	turn.Close(MessageStop("second", LevelError))

	if turn.Stop.Type != StopLog || turn.Stop.Message != "first" {
		t.Errorf("second Close overwrote the first: %+v", turn.Stop)
	}
}

func TestToolUsesFiltersBlocks(t *testing.T) {
	turn := NewResponseTurn()
	turn.Message = []*MessageResult{
		{Type: BlockStart},
		{Type: BlockText, Text: "let me check"},
		{Type: BlockToolUse, ID: "a", Name: "alpha"},
		{Type: BlockToolUse, ID: "b", Name: "beta"},
	}

	uses := turn.ToolUses()
	if len(uses) != 2 || uses[0].ID != "a" || uses[1].ID != "b" {
		t.Errorf("tool uses = %+v", uses)
	}
}
