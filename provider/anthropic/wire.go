package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/turnwire/turnwire/internal/jsonschema"
)

/*
	ANTHROPIC MESSAGES API - WIRE TYPES

	Streaming uses SSE with "event:" lines as discriminators, but the JSON
	payload carries a redundant "type" field, so the frame decoder only
	needs "data:" lines and discrimination happens here.

	Event lifecycle:
	  message_start → content_block_start → content_block_delta(s) →
	  content_block_stop → message_delta → message_stop
*/

// streamEvent is the top-level envelope for all stream events. Type selects
// which optional fields are populated.
type streamEvent struct {
	Type         string            `json:"type"`
	Message      *messageSnapshot  `json:"message,omitempty"`       // message_start
	Index        *int              `json:"index,omitempty"`         // content_block_start/delta/stop
	ContentBlock *wireContentBlock `json:"content_block,omitempty"` // content_block_start
	Delta        *streamDelta      `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *wireUsage        `json:"usage,omitempty"`         // message_delta
	Error        *wireError        `json:"error,omitempty"`         // error
}

// messageSnapshot is the partial message object carried by message_start.
// Only the usage counters matter here.
type messageSnapshot struct {
	ID    string    `json:"id"`
	Model string    `json:"model"`
	Usage wireUsage `json:"usage"`
}

// streamDelta is the nested delta payload. Its own Type field discriminates:
// text_delta, thinking_delta, signature_delta, input_json_delta carry block
// content; message_delta events carry StopReason with no delta type.
type streamDelta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Signature   string `json:"signature,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// wireContentBlock appears in content_block_start (block header) and in
// request bodies (full blocks).
type wireContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// errorEnvelope is the HTTP error body shape.
type errorEnvelope struct {
	Type  string     `json:"type"`
	Error *wireError `json:"error"`
}

// messagesRequest is the POST /v1/messages body.
type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string             `json:"role"`
	Content []wireContentBlock `json:"content"`
}

type wireTool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// modelsResponse is the GET /v1/models body.
type modelsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

// unmarshalStreamEvent parses one frame payload. A payload that is not JSON
// or lacks the type discriminator is malformed, not unknown.
func unmarshalStreamEvent(payload string) (*streamEvent, error) {
	event := &streamEvent{}
	if err := json.Unmarshal([]byte(payload), event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		return nil, fmt.Errorf("missing type field in stream event")
	}
	return event, nil
}
