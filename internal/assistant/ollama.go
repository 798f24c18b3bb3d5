package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lifedash/lifedash/pkg/types"
)

const defaultOllamaModel = "llama3.1"

// OllamaClient implements Provider against an Ollama-compatible chat API.
// Optional access-gateway credentials are sent as CF-Access headers for
// deployments behind an auth proxy.
type OllamaClient struct {
	baseURL             string
	model               string
	gatewayClientID     string
	gatewayClientSecret string
	client              *http.Client
}

// OllamaRequest is the /api/chat request body
type OllamaRequest struct {
	Model    string           `json:"model"`
	Messages []OllamaMessage  `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

// OllamaMessage is one chat message in Ollama's format
type OllamaMessage struct {
	Role      string           `json:"role"` // "system", "user", "assistant", "tool"
	Content   string           `json:"content"`
	ToolCalls []OllamaToolCall `json:"tool_calls,omitempty"`
}

// OllamaToolCall is a tool invocation in Ollama's response format
type OllamaToolCall struct {
	Function OllamaFunctionCall `json:"function"`
}

// OllamaFunctionCall carries the requested tool name and arguments
type OllamaFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// OllamaResponse is the non-streaming /api/chat response body
type OllamaResponse struct {
	Model           string        `json:"model"`
	Message         OllamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

type ollamaErrorWrapper struct {
	Error string `json:"error"`
}

// NewOllamaClient creates a client for an Ollama-compatible endpoint.
func NewOllamaClient(baseURL, model, gatewayClientID, gatewayClientSecret string) *OllamaClient {
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaClient{
		baseURL:             strings.TrimRight(baseURL, "/"),
		model:               model,
		gatewayClientID:     gatewayClientID,
		gatewayClientSecret: gatewayClientSecret,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name returns the provider class
func (c *OllamaClient) Name() string {
	return "self-hosted"
}

func (c *OllamaClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.gatewayClientID != "" {
		req.Header.Set("CF-Access-Client-Id", c.gatewayClientID)
		req.Header.Set("CF-Access-Client-Secret", c.gatewayClientSecret)
	}
}

// convertMessagesToOllama converts provider-neutral messages to Ollama's format.
// The system instruction rides along as the first message.
func convertMessagesToOllama(system string, messages []Message) []OllamaMessage {
	out := make([]OllamaMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, OllamaMessage{Role: "system", Content: system})
	}
	for _, msg := range messages {
		m := OllamaMessage{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, OllamaToolCall{
				Function: OllamaFunctionCall{Name: tc.Name, Arguments: tc.Args},
			})
		}
		out = append(out, m)
	}
	return out
}

// Generate performs one non-streaming chat call
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := OllamaRequest{
		Model:    model,
		Messages: convertMessagesToOllama(req.System, req.Messages),
		Tools:    req.Tools,
		Stream:   false,
	}

	bodyData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(bodyData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ollamaErrorWrapper
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("ollama API error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var ollamaResp OllamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &GenerateResult{
		Text:  ollamaResp.Message.Content,
		Model: ollamaResp.Model,
		Usage: types.Usage{
			InputTokens:  ollamaResp.PromptEvalCount,
			OutputTokens: ollamaResp.EvalCount,
		},
	}
	if result.Model == "" {
		result.Model = model
	}

	for _, tc := range ollamaResp.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallRequest{
			ID:   uuid.NewString(),
			Name: tc.Function.Name,
			Args: tc.Function.Arguments,
		})
	}

	return result, nil
}
