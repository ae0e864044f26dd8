package openai

import (
	"encoding/json"
	"fmt"

	"github.com/turnwire/turnwire/internal/jsonschema"
)

/*
	OPENAI RESPONSES API - WIRE TYPES

	Streaming is SSE with one JSON payload per frame; the "type" field
	discriminates. Content is addressed by output item id plus content
	index rather than a single running block index, so the block map is
	keyed by the composite "itemID:contentIndex".

	Event lifecycle:
	  response.created → response.output_item.added →
	  response.content_part.added → *.delta → *.done →
	  response.output_item.done → response.completed
*/

// streamEvent is the envelope for all Responses stream events.
type streamEvent struct {
	Type         string            `json:"type"`
	Response     *responseSnapshot `json:"response,omitempty"`
	Item         *outputItem       `json:"item,omitempty"`
	ItemID       string            `json:"item_id,omitempty"`
	OutputIndex  int               `json:"output_index,omitempty"`
	ContentIndex int               `json:"content_index,omitempty"`
	Part         *contentPart      `json:"part,omitempty"`
	Delta        string            `json:"delta,omitempty"`
	Error        *wireError        `json:"error,omitempty"` // top-level error event
	Code         string            `json:"code,omitempty"`
	Message      string            `json:"message,omitempty"`
}

// responseSnapshot is the response object carried by lifecycle events.
type responseSnapshot struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	Usage             *wireUsage `json:"usage,omitempty"`
	Error             *wireError `json:"error,omitempty"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
}

// outputItem is one element of the response output array. Type is message,
// reasoning or function_call; function_call items carry the invocation
// identity up front while the arguments stream afterwards.
type outputItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status,omitempty"`
	Role      string `json:"role,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// contentPart is one content element of a message item.
type contentPart struct {
	Type    string `json:"type"` // output_text | refusal
	Text    string `json:"text,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorEnvelope is the HTTP error body shape.
type errorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// responsesRequest is the POST /responses body. Input items replay the
// session; previous_response_id chaining is deliberately not used so the
// session store stays the single source of truth.
type responsesRequest struct {
	Model           string      `json:"model"`
	Input           []inputItem `json:"input"`
	MaxOutputTokens int         `json:"max_output_tokens,omitempty"`
	Temperature     *float64    `json:"temperature,omitempty"`
	Tools           []wireTool  `json:"tools,omitempty"`
	Stream          bool        `json:"stream,omitempty"`
	Store           bool        `json:"store"`
}

// inputItem is one replayed turn element. Exactly one variant is populated:
// a role+content message, a function_call, or a function_call_output.
type inputItem struct {
	Type    string         `json:"type,omitempty"`
	Role    string         `json:"role,omitempty"`
	Content []inputContent `json:"content,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output
	Output string `json:"output,omitempty"`
}

type inputContent struct {
	Type string `json:"type"` // input_text | output_text
	Text string `json:"text"`
}

type wireTool struct {
	Type        string             `json:"type"` // "function"
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// modelsResponse is the GET /models body.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

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
