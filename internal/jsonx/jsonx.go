// Package jsonx parses JSON produced by language models, which is frequently
// almost-JSON: single quotes, trailing commas, unquoted keys, truncated
// objects. Strict parsing is attempted first; on failure the input is run
// through jsonrepair and parsed again.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseObject decodes a JSON object string into a map, repairing the input
// when strict parsing fails. An empty or whitespace-only string decodes to an
// empty map, matching how providers encode a no-argument tool call.
func ParseObject(content string) (map[string]any, error) {
	if strings.TrimSpace(content) == "" {
		return map[string]any{}, nil
	}

	result := map[string]any{}
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return nil, fmt.Errorf("jsonx: unparsable object (repair failed: %v): %q", repairErr, content)
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, fmt.Errorf("jsonx: repaired JSON still invalid: %w", err)
	}
	return result, nil
}

// ParseObjectLenient is ParseObject with the degraded fallback required for
// tool arguments: content that cannot be parsed even after repair yields an
// empty map instead of an error, so a malformed model output never aborts a
// tool invocation.
func ParseObjectLenient(content string) map[string]any {
	result, err := ParseObject(content)
	if err != nil {
		return map[string]any{}
	}
	return result
}
