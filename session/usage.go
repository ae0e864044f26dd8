package session

// TokenUsage holds session-level cumulative token counters.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// UsageDelta is one mid-stream token-usage report. Fields default to zero;
// providers may report several partial deltas per stream (Anthropic reports
// input tokens at message_start and output tokens at message_delta).
type UsageDelta struct {
	InputTokens  int `json:"inputTokensDelta,omitempty"`
	OutputTokens int `json:"outputTokensDelta,omitempty"`
}

// AddUsage folds a usage delta into the session counters, creating the
// counter object on first use.
func AddUsage(s *Session, delta UsageDelta) {
	if delta.InputTokens == 0 && delta.OutputTokens == 0 {
		return
	}
	if s.TokenUsage == nil {
		s.TokenUsage = &TokenUsage{}
	}
	s.TokenUsage.InputTokens += delta.InputTokens
	s.TokenUsage.OutputTokens += delta.OutputTokens
}
