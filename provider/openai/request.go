package openai

import (
	"encoding/json"
	"fmt"

	"github.com/turnwire/turnwire/internal/jsonschema"
	"github.com/turnwire/turnwire/internal/jsonx"
	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
	"github.com/turnwire/turnwire/tools"
)

// TranslateSession renders the session history as a Responses API request.
// The whole conversation is replayed as input items on every call; response
// chaining on the provider side is disabled (store=false) so the session
// store remains authoritative.
func (p *Provider) TranslateSession(s *session.Session, cfg provider.ModelConfig, defs []tools.Definition) ([]byte, error) {
	request, err := p.buildRequest(s, cfg, defs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(request)
}

func (p *Provider) buildRequest(s *session.Session, cfg provider.ModelConfig, defs []tools.Definition) (*responsesRequest, error) {
	if cfg.ModelID == "" {
		cfg = p.DefaultModelConfig()
	}

	var input []inputItem
	for _, turn := range s.Turns {
		switch t := turn.(type) {
		case *session.RequestTurn:
			items, err := translateRequestTurn(t)
			if err != nil {
				return nil, err
			}
			input = append(input, items...)

		case *session.ResponseTurn:
			input = append(input, translateResponseTurn(t)...)

		case *session.ToolTurn:
			if !t.Done {
				return nil, &provider.SessionTranslationError{
					Reason: fmt.Sprintf("tool turn %s has no result yet", t.UseID),
				}
			}
			output := t.ResponseContent
			if t.IsError {
				output = "Tool execution failed: " + output
			}
			input = append(input, inputItem{
				Type:   "function_call_output",
				CallID: t.UseID,
				Output: output,
			})

		default:
			return nil, &provider.SessionTranslationError{
				Reason: fmt.Sprintf("unknown turn kind %q", turn.Kind()),
			}
		}
	}

	request := &responsesRequest{
		Model:           cfg.ModelID,
		Input:           input,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Stream:          true,
		Store:           false,
	}
	if request.MaxOutputTokens <= 0 {
		request.MaxOutputTokens = defaultMaxOutputTokens
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

func translateRequestTurn(turn *session.RequestTurn) ([]inputItem, error) {
	var items []inputItem
	var texts []inputContent
	for _, part := range turn.Message {
		switch part.Type {
		case session.RequestText:
			texts = append(texts, inputContent{Type: "input_text", Text: part.Text})
		case session.RequestToolResult:
			output := part.Content
			if part.IsError {
				output = "Tool execution failed: " + output
			}
			items = append(items, inputItem{
				Type:   "function_call_output",
				CallID: part.ToolUseID,
				Output: output,
			})
		default:
			return nil, &provider.SessionTranslationError{
				Reason: fmt.Sprintf("unknown request content kind %q", part.Type),
			}
		}
	}
	if len(texts) > 0 {
		items = append([]inputItem{{Role: "user", Content: texts}}, items...)
	}
	return items, nil
}

func translateResponseTurn(turn *session.ResponseTurn) []inputItem {
	var items []inputItem
	var texts []inputContent
	for _, block := range turn.Message {
		switch block.Type {
		case session.BlockText:
			if block.Text != "" {
				texts = append(texts, inputContent{Type: "output_text", Text: block.Text})
			}
		case session.BlockToolUse:
			items = append(items, inputItem{
				Type:      "function_call",
				CallID:    block.ID,
				Name:      block.Name,
				Arguments: toolArgumentsJSON(block.Input),
			})
		}
		// start markers, thinking and refusals are not replayable here:
		// reasoning items need provider-side state we do not keep.
	}
	if len(texts) > 0 {
		items = append([]inputItem{{Role: "assistant", Content: texts}}, items...)
	}
	return items
}

// toolArgumentsJSON normalizes accumulated arguments to a valid JSON object
// string, repairing payloads truncated by an interrupted stream.
func toolArgumentsJSON(arguments string) string {
	if arguments != "" && json.Valid([]byte(arguments)) {
		return arguments
	}
	repaired, _ := json.Marshal(jsonx.ParseObjectLenient(arguments))
	return string(repaired)
}

// TranslateToolSchema declares tools in the Responses function format.
func (p *Provider) TranslateToolSchema(defs []tools.Definition) any {
	declared := make([]wireTool, 0, len(defs))
	for _, def := range defs {
		schema := def.Parameters
		if schema == nil {
			schema = &jsonschema.Schema{Type: "object"}
		}
		declared = append(declared, wireTool{
			Type:        "function",
			Name:        def.Name,
			Description: def.Description,
			Parameters:  schema,
		})
	}
	return declared
}
