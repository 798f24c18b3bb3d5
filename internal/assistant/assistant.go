package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/logger"
	"github.com/lifedash/lifedash/internal/metrics"
	"github.com/lifedash/lifedash/internal/tools"
	"github.com/lifedash/lifedash/internal/usage"
	"github.com/lifedash/lifedash/pkg/types"
)

// Assistant runs the chat pipeline: provider selection, a single round of
// tool calling (native or via the text fallback), one follow-up call, and
// usage recording.
type Assistant struct {
	provider Provider
	executor *tools.Executor
	recorder *usage.Recorder
	log      *logger.Logger
}

// New selects the provider from config and wires the pipeline. A configured
// self-hosted base URL takes precedence over a hosted API key; neither being
// set is a configuration error.
func New(cfg *config.Config, executor *tools.Executor, recorder *usage.Recorder, log *logger.Logger) (*Assistant, error) {
	if log == nil {
		log = logger.New("assistant", "info")
	}

	var provider Provider
	switch {
	case cfg.SelfHosted.BaseURL != "":
		provider = NewOllamaClient(
			cfg.SelfHosted.BaseURL,
			cfg.SelfHosted.Model,
			cfg.SelfHosted.GatewayClientID,
			cfg.SelfHosted.GatewayClientSecret,
		)
	case cfg.Hosted.APIKey != "":
		provider = NewGeminiClient(cfg.Hosted.APIKey, cfg.Hosted.Model)
	default:
		return nil, ErrNoProvider
	}

	log.Info("using %s provider", provider.Name())

	return &Assistant{
		provider: provider,
		executor: executor,
		recorder: recorder,
		log:      log,
	}, nil
}

// NewWithProvider wires the pipeline around an explicit provider.
func NewWithProvider(provider Provider, executor *tools.Executor, recorder *usage.Recorder, log *logger.Logger) *Assistant {
	if log == nil {
		log = logger.New("assistant", "info")
	}
	return &Assistant{
		provider: provider,
		executor: executor,
		recorder: recorder,
		log:      log,
	}
}

// Provider returns the active provider.
func (a *Assistant) Provider() Provider {
	return a.provider
}

// runState accumulates per-request outcome for the usage log.
type runState struct {
	start        time.Time
	model        string
	usage        types.Usage
	invocations  []tools.Invocation
	usedFallback bool
}

func (s *runState) addUsage(res *GenerateResult) {
	s.usage.InputTokens += res.Usage.InputTokens
	s.usage.OutputTokens += res.Usage.OutputTokens
	if res.Model != "" {
		s.model = res.Model
	}
}

// Chat handles one request end to end. Exactly one usage entry is recorded
// per call, on success and on error alike.
func (a *Assistant) Chat(ctx context.Context, requestID string, req *types.ChatRequest) (*types.ChatResponse, error) {
	rlog := a.log.WithRequestID(requestID)
	state := &runState{start: time.Now(), model: req.Model}

	metrics.IncrementRequests(a.provider.Name())

	resp, err := a.run(ctx, rlog, req, state)
	if err != nil {
		metrics.IncrementRequestErrors(a.provider.Name())
		a.record(requestID, req, state, "", "error")
		return nil, err
	}

	a.record(requestID, req, state, resp.Response, "success")
	return resp, nil
}

func (a *Assistant) run(ctx context.Context, rlog *logger.RequestLogger, req *types.ChatRequest, state *runState) (*types.ChatResponse, error) {
	system := BuildSystemInstruction(req.Context)
	messages := buildConversation(req.History, req.Message)
	registry := a.executor.Registry()

	var schemas []map[string]any
	switch a.provider.Name() {
	case "self-hosted":
		schemas = registry.OllamaSchemas()
	default:
		schemas = registry.FunctionDeclarations()
	}

	result, err := a.provider.Generate(ctx, GenerateRequest{
		Model:    req.Model,
		System:   system,
		Messages: messages,
		Tools:    schemas,
	})
	if err != nil {
		// A self-hosted model that rejects the native tool syntax still
		// surfaces as a call error, so the first failure on that path
		// switches this request to the text fallback.
		if a.provider.Name() == "self-hosted" {
			rlog.Warn("native tool call failed, switching to fallback protocol: %v", err)
			return a.runFallback(ctx, rlog, req, system, messages, state)
		}
		return nil, fmt.Errorf("provider call failed: %w", err)
	}
	state.addUsage(result)

	if len(result.ToolCalls) == 0 {
		rlog.Debug("no tool calls requested")
		return &types.ChatResponse{Response: result.Text}, nil
	}

	rlog.Info("model requested %d tool call(s)", len(result.ToolCalls))

	// Tool calls run in the order requested, one at a time. The second call
	// may depend on state the first established upstream.
	messages = append(messages, Message{
		Role:      "assistant",
		Content:   result.Text,
		ToolCalls: result.ToolCalls,
	})
	for _, tc := range result.ToolCalls {
		inv := a.executor.Execute(ctx, tc.Name, tc.Args)
		state.invocations = append(state.invocations, inv)
		messages = append(messages, Message{
			Role:     "tool",
			Content:  inv.Result,
			ToolName: tc.Name,
		})
	}

	// Exactly one follow-up call. Its failure is terminal.
	followUp, err := a.provider.Generate(ctx, GenerateRequest{
		Model:    req.Model,
		System:   system,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("follow-up provider call failed: %w", err)
	}
	state.addUsage(followUp)

	return a.buildResponse(followUp.Text, state), nil
}

// runFallback rebuilds the prompt with the text tool menu and parses the
// reply for at most one embedded tool invocation.
func (a *Assistant) runFallback(ctx context.Context, rlog *logger.RequestLogger, req *types.ChatRequest, system string, messages []Message, state *runState) (*types.ChatResponse, error) {
	state.usedFallback = true
	metrics.IncrementFallback()
	registry := a.executor.Registry()

	fallbackSystem := BuildFallbackSystem(system, registry.PromptMenu())
	result, err := a.provider.Generate(ctx, GenerateRequest{
		Model:    req.Model,
		System:   fallbackSystem,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("fallback provider call failed: %w", err)
	}
	state.addUsage(result)

	inv, ok := ParseFallbackReply(result.Text, registry.Has)
	if !ok {
		rlog.Debug("no tool invocation found in fallback reply")
		return &types.ChatResponse{Response: result.Text}, nil
	}

	rlog.Info("fallback reply requested tool %s", inv.Name)
	executed := a.executor.Execute(ctx, inv.Name, inv.Args)
	state.invocations = append(state.invocations, executed)

	messages = append(messages,
		Message{Role: "assistant", Content: result.Text},
		Message{Role: "user", Content: fmt.Sprintf(
			"Tool result for %s: %s\nPlease respond helpfully using this result.",
			inv.Name, executed.Result,
		)},
	)

	followUp, err := a.provider.Generate(ctx, GenerateRequest{
		Model:    req.Model,
		System:   fallbackSystem,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("fallback follow-up call failed: %w", err)
	}
	state.addUsage(followUp)

	return a.buildResponse(followUp.Text, state), nil
}

// buildResponse attaches executed tool calls and any navigation action.
func (a *Assistant) buildResponse(text string, state *runState) *types.ChatResponse {
	resp := &types.ChatResponse{Response: text}
	for _, inv := range state.invocations {
		resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
			Name:   inv.Name,
			Args:   inv.Args,
			Result: inv.Result,
		})
		if inv.Name == "navigateTo" && inv.Err == "" {
			if page, ok := inv.Args["page"].(string); ok && page != "" {
				resp.Actions = &types.Action{NavigateTo: page}
			}
		}
	}
	return resp
}

// record writes the usage log entry for one finished request.
func (a *Assistant) record(requestID string, req *types.ChatRequest, state *runState, answer, status string) {
	// Token metrics count even when no recorder is wired.
	metrics.AddTokens(state.usage.InputTokens, state.usage.OutputTokens)

	if a.recorder == nil {
		return
	}

	stats := make([]types.ToolCallStat, 0, len(state.invocations))
	for _, inv := range state.invocations {
		stats = append(stats, types.ToolCallStat{
			Name:       inv.Name,
			DurationMs: inv.Duration.Milliseconds(),
			Error:      inv.Err,
		})
	}

	a.recorder.Record(&types.UsageLogEntry{
		ID:           requestID,
		Provider:     a.provider.Name(),
		Model:        state.model,
		InputTokens:  state.usage.InputTokens,
		OutputTokens: state.usage.OutputTokens,
		LatencyMs:    time.Since(state.start).Milliseconds(),
		ToolCalls:    stats,
		Status:       status,
		UsedFallback: state.usedFallback,
	}, req.Message, answer)
}
