package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/turnwire/turnwire/internal/jsonschema"
	"github.com/turnwire/turnwire/internal/jsonx"
	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
	"github.com/turnwire/turnwire/tools"
)

// TranslateSession renders the session history as a Messages API request
// body. Done tool turns become tool_result user messages; consecutive
// results are merged into one message because the API requires every
// tool_result for a given assistant message in a single user turn.
func (p *Provider) TranslateSession(s *session.Session, cfg provider.ModelConfig, defs []tools.Definition) ([]byte, error) {
	request, err := p.buildRequest(s, cfg, defs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(request)
}

func (p *Provider) buildRequest(s *session.Session, cfg provider.ModelConfig, defs []tools.Definition) (*messagesRequest, error) {
	if cfg.ModelID == "" {
		cfg = p.DefaultModelConfig()
	}

	var messages []wireMessage
	for _, turn := range s.Turns {
		switch t := turn.(type) {
		case *session.RequestTurn:
			message, err := translateRequestTurn(t)
			if err != nil {
				return nil, err
			}
			messages = append(messages, message)

		case *session.ResponseTurn:
			message := translateResponseTurn(t)
			if len(message.Content) > 0 {
				messages = append(messages, message)
			}

		case *session.ToolTurn:
			if !t.Done {
				return nil, &provider.SessionTranslationError{
					Reason: fmt.Sprintf("tool turn %s has no result yet", t.UseID),
				}
			}
			block := wireContentBlock{
				Type:      "tool_result",
				ToolUseID: t.UseID,
				Content:   t.ResponseContent,
				IsError:   t.IsError,
			}
			if last := len(messages) - 1; last >= 0 && isToolResultMessage(messages[last]) {
				messages[last].Content = append(messages[last].Content, block)
			} else {
				messages = append(messages, wireMessage{Role: "user", Content: []wireContentBlock{block}})
			}

		default:
			return nil, &provider.SessionTranslationError{
				Reason: fmt.Sprintf("unknown turn kind %q", turn.Kind()),
			}
		}
	}

	request := &messagesRequest{
		Model:     cfg.ModelID,
		MaxTokens: cfg.MaxOutputTokens,
		Messages:  messages,
		Stream:    true,
	}
	if request.MaxTokens <= 0 {
		request.MaxTokens = defaultMaxOutputTokens
	}
	if cfg.Temperature > 0 {
		temperature := cfg.Temperature
		request.Temperature = &temperature
	}
	if declared, ok := p.TranslateToolSchema(defs).([]wireTool); ok {
		request.Tools = declared
	}
	return request, nil
}

func translateRequestTurn(turn *session.RequestTurn) (wireMessage, error) {
	message := wireMessage{Role: "user"}
	for _, part := range turn.Message {
		switch part.Type {
		case session.RequestText:
			message.Content = append(message.Content, wireContentBlock{Type: "text", Text: part.Text})
		case session.RequestToolResult:
			message.Content = append(message.Content, wireContentBlock{
				Type:      "tool_result",
				ToolUseID: part.ToolUseID,
				Content:   part.Content,
				IsError:   part.IsError,
			})
		default:
			return wireMessage{}, &provider.SessionTranslationError{
				Reason: fmt.Sprintf("unknown request content kind %q", part.Type),
			}
		}
	}
	return message, nil
}

func translateResponseTurn(turn *session.ResponseTurn) wireMessage {
	message := wireMessage{Role: "assistant"}
	for _, block := range turn.Message {
		switch block.Type {
		case session.BlockText:
			if block.Text != "" {
				message.Content = append(message.Content, wireContentBlock{Type: "text", Text: block.Text})
			}
		case session.BlockThinking:
			if block.Thinking != "" {
				message.Content = append(message.Content, wireContentBlock{
					Type:      "thinking",
					Thinking:  block.Thinking,
					Signature: block.Signature,
				})
			}
		case session.BlockToolUse:
			message.Content = append(message.Content, wireContentBlock{
				Type:  "tool_use",
				ID:    block.ID,
				Name:  block.Name,
				Input: toolInputJSON(block.Input),
			})
		}
		// start markers and refusals have no request-side representation.
	}
	return message
}

// toolInputJSON turns the accumulated input string into a JSON object,
// repairing truncated payloads from interrupted streams.
func toolInputJSON(input string) json.RawMessage {
	if json.Valid([]byte(input)) && input != "" {
		return json.RawMessage(input)
	}
	repaired, _ := json.Marshal(jsonx.ParseObjectLenient(input))
	return repaired
}

func isToolResultMessage(message wireMessage) bool {
	if message.Role != "user" || len(message.Content) == 0 {
		return false
	}
	for _, block := range message.Content {
		if block.Type != "tool_result" {
			return false
		}
	}
	return true
}

// TranslateToolSchema declares tools in the Messages API format.
func (p *Provider) TranslateToolSchema(defs []tools.Definition) any {
	declared := make([]wireTool, 0, len(defs))
	for _, def := range defs {
		schema := def.Parameters
		if schema == nil {
			schema = &jsonschema.Schema{Type: "object"}
		}
		declared = append(declared, wireTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	return declared
}
