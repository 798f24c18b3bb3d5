package types

import "time"

// ToolCallStat is the summarized form of a tool invocation kept in the
// usage log.
type ToolCallStat struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// UsageLogEntry is one append-only usage record, written once per chat
// request after it succeeds or fails and never mutated afterward.
type UsageLogEntry struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	Provider        string         `json:"provider"` // "hosted" or "self-hosted"
	Model           string         `json:"model"`
	InputTokens     int            `json:"inputTokens"`
	OutputTokens    int            `json:"outputTokens"`
	LatencyMs       int64          `json:"latencyMs"`
	ToolCalls       []ToolCallStat `json:"toolCalls,omitempty"`
	QuestionPreview string         `json:"questionPreview"`
	AnswerPreview   string         `json:"answerPreview"`
	Status          string         `json:"status"` // "success" or "error"
	UsedFallback    bool           `json:"usedFallbackProtocol"`
}
