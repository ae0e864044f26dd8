package session

import (
	"encoding/json"
	"fmt"
)

// TurnKind discriminates the three turn variants in a session.
type TurnKind string

const (
	TurnRequest  TurnKind = "request"
	TurnResponse TurnKind = "response"
	TurnTool     TurnKind = "tool"
)

// Turn is one unit of conversation history, stored in arrival order. The
// sequence is append-only except that the last response turn is mutated in
// place while its stream is open, and a tool turn is mutated once when it
// completes.
type Turn interface {
	Kind() TurnKind
}

// Turns is the ordered turn sequence. It carries custom JSON decoding because
// the element type is discriminated by the "type" field.
type Turns []Turn

// UnmarshalJSON decodes a heterogeneous turn array by peeking each element's
// "type" discriminator before unmarshaling into the concrete variant.
func (turns *Turns) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := make(Turns, 0, len(raw))
	for i, element := range raw {
		var envelope struct {
			Type TurnKind `json:"type"`
		}
		if err := json.Unmarshal(element, &envelope); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}

		switch envelope.Type {
		case TurnRequest:
			turn := &RequestTurn{}
			if err := json.Unmarshal(element, turn); err != nil {
				return fmt.Errorf("turn %d: %w", i, err)
			}
			decoded = append(decoded, turn)
		case TurnResponse:
			turn := &ResponseTurn{}
			if err := json.Unmarshal(element, turn); err != nil {
				return fmt.Errorf("turn %d: %w", i, err)
			}
			decoded = append(decoded, turn)
		case TurnTool:
			turn := &ToolTurn{}
			if err := json.Unmarshal(element, turn); err != nil {
				return fmt.Errorf("turn %d: %w", i, err)
			}
			decoded = append(decoded, turn)
		default:
			return fmt.Errorf("turn %d: unknown turn type %q", i, envelope.Type)
		}
	}

	*turns = decoded
	return nil
}

// RequestTurn is a user-authored turn: plain text and/or tool results.
type RequestTurn struct {
	Type      TurnKind         `json:"type"`
	MessageID string           `json:"messageId"`
	Message   []RequestContent `json:"message"`
}

// NewRequestTurn builds a request turn with a fresh message id.
func NewRequestTurn(content []RequestContent) *RequestTurn {
	return &RequestTurn{Type: TurnRequest, MessageID: NewMessageID(), Message: content}
}

func (t *RequestTurn) Kind() TurnKind { return TurnRequest }

// ResponseTurn is one assistant response. Message grows block by block while
// the stream is open; Stop is set exactly once, at stream end.
type ResponseTurn struct {
	Type      TurnKind         `json:"type"`
	MessageID string           `json:"messageId"`
	Message   []*MessageResult `json:"message"`
	Stop      *StopInfo        `json:"stop,omitempty"`
}

// NewResponseTurn builds an empty open response turn.
func NewResponseTurn() *ResponseTurn {
	return &ResponseTurn{Type: TurnResponse, MessageID: NewMessageID(), Message: []*MessageResult{}}
}

func (t *ResponseTurn) Kind() TurnKind { return TurnResponse }

// Close attaches the terminal stop info. The first stop wins; later calls are
// ignored so an abort racing a natural stop cannot overwrite it.
func (t *ResponseTurn) Close(stop StopInfo) {
	if t.Stop == nil {
		t.Stop = &stop
	}
}

// Closed reports whether the response has received its stop info.
func (t *ResponseTurn) Closed() bool { return t.Stop != nil }

// ToolUses returns the tool_use blocks of this response, in block order.
func (t *ResponseTurn) ToolUses() []*MessageResult {
	var uses []*MessageResult
	for _, block := range t.Message {
		if block.Type == BlockToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}

// ToolTurn tracks one tool invocation from "awaiting grant" through "done".
// Once Done is true the turn is immutable.
type ToolTurn struct {
	Type           TurnKind `json:"type"`
	UseID          string   `json:"useId"`
	ToolName       string   `json:"toolName"`
	Granted        bool     `json:"granted"`
	Done           bool     `json:"done"`
	RequestContent string   `json:"requestContent"`

	// Only meaningful (and only serialized) once Done is true.
	ResponseContent string `json:"responseContent,omitempty"`
	IsError         bool   `json:"isError,omitempty"`
}

// NewToolTurn builds a pending tool turn from a tool_use block.
func NewToolTurn(useID, toolName, requestContent string) *ToolTurn {
	return &ToolTurn{
		Type:           TurnTool,
		UseID:          useID,
		ToolName:       toolName,
		RequestContent: requestContent,
	}
}

func (t *ToolTurn) Kind() TurnKind { return TurnTool }

// Complete marks the turn done with the given result. No-op once done.
func (t *ToolTurn) Complete(granted bool, responseContent string, isError bool) {
	if t.Done {
		return
	}
	t.Done = true
	t.Granted = granted
	t.ResponseContent = responseContent
	t.IsError = isError
}

// MarshalJSON omits the completion fields while the turn is pending, so the
// persisted shape matches the done=false variant exactly.
func (t *ToolTurn) MarshalJSON() ([]byte, error) {
	if !t.Done {
		return json.Marshal(struct {
			Type           TurnKind `json:"type"`
			UseID          string   `json:"useId"`
			ToolName       string   `json:"toolName"`
			Granted        bool     `json:"granted"`
			Done           bool     `json:"done"`
			RequestContent string   `json:"requestContent"`
		}{t.Type, t.UseID, t.ToolName, t.Granted, t.Done, t.RequestContent})
	}

	type done ToolTurn // drops the method set, avoids recursion
	return json.Marshal(struct {
		done
		ResponseContent string `json:"responseContent"`
		IsError         bool   `json:"isError"`
	}{done(*t), t.ResponseContent, t.IsError})
}

// RequestContentKind discriminates request content parts.
type RequestContentKind string

const (
	RequestText       RequestContentKind = "text"
	RequestToolResult RequestContentKind = "tool_result"
)

// RequestContent is one part of a request turn.
type RequestContent struct {
	Type      RequestContentKind `json:"type"`
	Text      string             `json:"text,omitempty"`
	ToolUseID string             `json:"toolUseId,omitempty"`
	Content   string             `json:"content,omitempty"`
	IsError   bool               `json:"isError,omitempty"`
}

// TextContent builds a plain-text request part.
func TextContent(text string) RequestContent {
	return RequestContent{Type: RequestText, Text: text}
}

// ToolResultContent builds a tool_result request part referencing a tool use.
func ToolResultContent(useID, content string, isError bool) RequestContent {
	return RequestContent{Type: RequestToolResult, ToolUseID: useID, Content: content, IsError: isError}
}

// BlockKind discriminates the normalized content-block vocabulary every
// provider stream is translated into.
type BlockKind string

const (
	BlockStart    BlockKind = "start"
	BlockEnd      BlockKind = "end"
	BlockText     BlockKind = "text"
	BlockThinking BlockKind = "thinking"
	BlockToolUse  BlockKind = "tool_use"
	BlockRefusal  BlockKind = "refusal"
)

// MessageResult is one normalized content block of an assistant response.
// Text, Thinking, Input, Refusal and Signature are accumulator strings that
// grow while the block streams; ID and Name are set once on block open.
type MessageResult struct {
	Type      BlockKind `json:"type"`
	Text      string    `json:"text,omitempty"`
	Thinking  string    `json:"thinking,omitempty"`
	Signature string    `json:"signature,omitempty"`
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Input     string    `json:"input,omitempty"`
	Refusal   string    `json:"refusal,omitempty"`
}

// StopKind discriminates the stop info variants.
type StopKind string

const (
	// StopMessage is a user-visible stop notice with a severity level.
	StopMessage StopKind = "message"
	// StopLog is an internal notice not meant for end users.
	StopLog StopKind = "log"
	// StopToolUse signals that tool execution is expected before the
	// conversation can continue.
	StopToolUse StopKind = "tool_use"
)

// Severity levels for StopMessage stops.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// StopInfo records why a response turn ended. At most one is attached per
// response turn, at stream end.
type StopInfo struct {
	Type    StopKind `json:"type"`
	Reason  string   `json:"reason,omitempty"`
	Level   string   `json:"level,omitempty"`
	Message string   `json:"message,omitempty"`
}

// LogStop builds an internal stop notice.
func LogStop(message string) StopInfo {
	return StopInfo{Type: StopLog, Message: message}
}

// MessageStop builds a user-visible stop notice.
func MessageStop(reason, level string) StopInfo {
	return StopInfo{Type: StopMessage, Reason: reason, Level: level}
}

// ToolUseStop builds the stop that opens a tool gate.
func ToolUseStop() StopInfo {
	return StopInfo{Type: StopToolUse}
}
