package assistant

import (
	"context"
	"errors"

	"github.com/lifedash/lifedash/pkg/types"
)

// ErrNoProvider is returned when neither a self-hosted base URL nor a hosted
// API key is configured.
var ErrNoProvider = errors.New("no model provider configured")

// Message is one provider-neutral conversation entry. ToolCalls is set on
// assistant messages that requested tools; ToolName is set on tool-result
// messages.
type Message struct {
	Role      string // "user", "assistant", "tool"
	Content   string
	ToolCalls []ToolCallRequest
	ToolName  string
}

// ToolCallRequest is a tool invocation requested by the model.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// GenerateRequest is a single model call.
type GenerateRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []map[string]any // provider-native tool schemas; nil disables tools
}

// GenerateResult is the outcome of one model call. Either Text, ToolCalls,
// or both may be populated.
type GenerateResult struct {
	Text      string
	ToolCalls []ToolCallRequest
	Model     string
	Usage     types.Usage
}

// Provider is a chat completion backend.
type Provider interface {
	// Name identifies the provider class: "hosted" or "self-hosted".
	Name() string

	// Generate performs one completion call.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
