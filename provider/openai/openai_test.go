package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
	"github.com/turnwire/turnwire/tools"
)

func textSession(text string) *session.Session {
	s := session.New("")
	s.Turns = append(s.Turns, session.NewRequestTurn([]session.RequestContent{session.TextContent(text)}))
	return s
}

func TestTranslateSessionBasic(t *testing.T) {
	p := New(WithAPIKey("test-key"))
	body, err := p.TranslateSession(textSession("hello"), provider.ModelConfig{ModelID: "gpt-test", MaxOutputTokens: 64}, nil)
	if err != nil {
		t.Fatal(err)
	}

	request := responsesRequest{}
	if err := json.Unmarshal(body, &request); err != nil {
		t.Fatal(err)
	}
	if request.Model != "gpt-test" || request.MaxOutputTokens != 64 || !request.Stream || request.Store {
		t.Errorf("request header fields = %+v", request)
	}
	if len(request.Input) != 1 || request.Input[0].Role != "user" {
		t.Fatalf("input = %+v", request.Input)
	}
	if request.Input[0].Content[0].Type != "input_text" || request.Input[0].Content[0].Text != "hello" {
		t.Errorf("content = %+v", request.Input[0].Content)
	}
}

func TestTranslateSessionReplaysToolCycle(t *testing.T) {
	s := textSession("weather please")

	response := session.NewResponseTurn()
	response.Message = []*session.MessageResult{
		{Type: session.BlockStart},
		{Type: session.BlockToolUse, ID: "call_01", Name: "get_weather", Input: `{"city":"Paris"}`},
	}
	response.Close(session.ToolUseStop())
	s.Turns = append(s.Turns, response)

	toolTurn := session.NewToolTurn("call_01", "get_weather", `{"city":"Paris"}`)
	toolTurn.Complete(true, "18C and clear", false)
	s.Turns = append(s.Turns, toolTurn)

	p := New(WithAPIKey("test-key"))
	request, err := p.buildRequest(s, provider.ModelConfig{ModelID: "gpt-test"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(request.Input) != 3 {
		t.Fatalf("expected user + function_call + function_call_output, got %+v", request.Input)
	}
	call := request.Input[1]
	if call.Type != "function_call" || call.CallID != "call_01" || call.Name != "get_weather" {
		t.Errorf("function_call = %+v", call)
	}
	result := request.Input[2]
	if result.Type != "function_call_output" || result.CallID != "call_01" || result.Output != "18C and clear" {
		t.Errorf("function_call_output = %+v", result)
	}
}

func TestTranslateSessionRejectsPendingToolTurn(t *testing.T) {
	s := textSession("hi")
	s.Turns = append(s.Turns, session.NewToolTurn("call_x", "get_weather", "{}"))

	p := New(WithAPIKey("test-key"))
	_, err := p.TranslateSession(s, provider.ModelConfig{ModelID: "gpt-test"}, nil)

	var translationErr *provider.SessionTranslationError
	if !errors.As(err, &translationErr) {
		t.Fatalf("error = %v, want SessionTranslationError", err)
	}
}

func TestTranslateToolSchema(t *testing.T) {
	p := New(WithAPIKey("test-key"))
	declared, ok := p.TranslateToolSchema([]tools.Definition{{Name: "echo"}}).([]wireTool)
	if !ok || len(declared) != 1 {
		t.Fatalf("schema translation = %#v", declared)
	}
	if declared[0].Type != "function" || declared[0].Name != "echo" || declared[0].Parameters == nil {
		t.Errorf("declared tool = %+v", declared[0])
	}
}

func TestSendMessageAuthenticates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"response.completed\",\"response\":{\"id\":\"r\"}}\n\n")
	}))
	defer server.Close()

	p := New(WithAPIKey("test-key"), WithBaseURL(server.URL))
	body, err := p.SendMessage(context.Background(), textSession("hi"), provider.ModelConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	body.Close()
}

func TestSendMessageDecodesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	p := New(WithAPIKey("bad-key"), WithBaseURL(server.URL))
	_, err := p.SendMessage(context.Background(), textSession("hi"), provider.ModelConfig{}, nil)

	var expected *provider.ExpectedError
	if !errors.As(err, &expected) {
		t.Fatalf("error = %v, want ExpectedError", err)
	}
	if expected.StatusCode != 401 || expected.ErrorType != "invalid_request_error" {
		t.Errorf("decoded error = %+v", expected)
	}
}

func TestModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"gpt-5"},{"id":"gpt-5-mini"}]}`)
	}))
	defer server.Close()

	p := New(WithAPIKey("test-key"), WithBaseURL(server.URL))
	models, err := p.Models(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0].ID != "gpt-5" {
		t.Errorf("models = %+v", models)
	}
}
