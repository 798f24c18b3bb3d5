package types

// ChatMessage is a single prior turn of the conversation, oldest first.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// DashboardContext carries optional dashboard state the caller wants the
// assistant to know about. Absent or empty fields contribute nothing to the
// system instruction.
type DashboardContext struct {
	FavoriteCities       []string `json:"favoriteCities,omitempty"`
	RecentCities         []string `json:"recentCities,omitempty"`
	StockWatchlist       []string `json:"stockWatchlist,omitempty"`
	PodcastSubscriptions int      `json:"podcastSubscriptions,omitempty"`
	TempUnit             string   `json:"tempUnit,omitempty"` // "C" or "F"
	Locale               string   `json:"locale,omitempty"`
	CurrentPage          string   `json:"currentPage,omitempty"`
}

// ChatRequest is one inbound assistant request. Immutable once received.
type ChatRequest struct {
	Message string            `json:"message"`
	History []ChatMessage     `json:"history,omitempty"`
	Context *DashboardContext `json:"context,omitempty"`
	Model   string            `json:"model,omitempty"` // self-hosted model variant override
}

// ToolCall is one executed tool call attached to a response.
type ToolCall struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"` // JSON-encoded payload
}

// Action is a structured hint the caller's UI can act on.
type Action struct {
	NavigateTo string `json:"navigateTo,omitempty"`
}

// ChatResponse is the single outbound response for a ChatRequest.
type ChatResponse struct {
	Response  string     `json:"response"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	Actions   *Action    `json:"actions,omitempty"`
}

// Usage tracks token consumption for one or more provider calls.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}
