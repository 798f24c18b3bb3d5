package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/metrics"
	"github.com/lifedash/lifedash/internal/tools"
	"github.com/lifedash/lifedash/internal/usage"
	"github.com/lifedash/lifedash/pkg/types"
)

// fakeProvider replays queued results and records every request it saw.
type fakeProvider struct {
	name     string
	results  []*GenerateResult
	errs     []error
	requests []GenerateRequest
}

func (f *fakeProvider) Name() string {
	return f.name
}

func (f *fakeProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return &GenerateResult{Text: "out of queued results"}, nil
}

// memStore is an in-memory usage.Store for asserting recorded entries.
type memStore struct {
	entries []types.UsageLogEntry
}

func (m *memStore) Append(entry *types.UsageLogEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memStore) QueryRange(since time.Time) ([]types.UsageLogEntry, error) {
	return m.entries, nil
}

func (m *memStore) QueryRecent(limit int) ([]types.UsageLogEntry, error) {
	return m.entries, nil
}

func testExecutor(t *testing.T) *tools.Executor {
	t.Helper()
	reg := tools.NewRegistry()
	reg.Register(&tools.Tool{
		Name:        "getWeather",
		Description: "weather",
		Parameters:  []tools.Parameter{{Name: "city", Type: "string", Required: true}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return `{"temperature":21.5,"description":"Partly cloudy"}`, nil
		},
	})
	reg.Register(&tools.Tool{
		Name:        "getCryptoPrices",
		Description: "crypto",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return `{"coins":[{"symbol":"BTC","price":"64000"}]}`, nil
		},
	})
	reg.Register(&tools.Tool{
		Name:        "navigateTo",
		Description: "navigate",
		Parameters:  []tools.Parameter{{Name: "page", Type: "string", Required: true}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return `{"navigatedTo":"stocks"}`, nil
		},
	})
	return tools.NewExecutor(reg, nil)
}

func testAssistant(t *testing.T, provider Provider) (*Assistant, *memStore) {
	t.Helper()
	store := &memStore{}
	recorder := usage.NewRecorder(store, nil)
	return NewWithProvider(provider, testExecutor(t), recorder, nil), store
}

func TestChatCountsTokensWithoutRecorder(t *testing.T) {
	provider := &fakeProvider{
		name: "hosted",
		results: []*GenerateResult{
			{Text: "Answer.", Usage: types.Usage{InputTokens: 7, OutputTokens: 3}},
		},
	}
	assistant := NewWithProvider(provider, testExecutor(t), nil, nil)

	inBefore, outBefore := metrics.Default().GetTokensTotal()

	_, err := assistant.Chat(context.Background(), "req-1", &types.ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inAfter, outAfter := metrics.Default().GetTokensTotal()
	if inAfter-inBefore != 7 || outAfter-outBefore != 3 {
		t.Errorf("token metrics not counted without a recorder: input +%d, output +%d",
			inAfter-inBefore, outAfter-outBefore)
	}
}

func TestChatNoToolCalls(t *testing.T) {
	provider := &fakeProvider{
		name: "hosted",
		results: []*GenerateResult{
			{Text: "Just an answer.", Model: "gemini-test", Usage: types.Usage{InputTokens: 10, OutputTokens: 5}},
		},
	}
	asst, store := testAssistant(t, provider)

	resp, err := asst.Chat(context.Background(), "req-1", &types.ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Response != "Just an answer." {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if resp.ToolCalls != nil {
		t.Error("toolCalls must be absent when no tools ran")
	}
	if len(provider.requests) != 1 {
		t.Errorf("expected exactly 1 provider call, got %d", len(provider.requests))
	}

	if len(store.entries) != 1 {
		t.Fatalf("expected 1 usage entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.InputTokens != 10 || entry.OutputTokens != 5 {
		t.Errorf("expected one call's worth of tokens, got %d/%d", entry.InputTokens, entry.OutputTokens)
	}
	if entry.Status != "success" {
		t.Errorf("expected success status, got %q", entry.Status)
	}
	if entry.UsedFallback {
		t.Error("fallback flag must be false on the native path")
	}
}

func TestChatSingleToolCall(t *testing.T) {
	provider := &fakeProvider{
		name: "hosted",
		results: []*GenerateResult{
			{
				ToolCalls: []ToolCallRequest{{ID: "1", Name: "getWeather", Args: map[string]any{"city": "Tokyo"}}},
				Usage:     types.Usage{InputTokens: 20, OutputTokens: 8},
			},
			{Text: "It's 21.5°C and partly cloudy in Tokyo.", Usage: types.Usage{InputTokens: 30, OutputTokens: 12}},
		},
	}
	asst, store := testAssistant(t, provider)

	resp, err := asst.Chat(context.Background(), "req-2", &types.ChatRequest{Message: "What's the weather in Tokyo?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(resp.Response, "partly cloudy") {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "getWeather" || tc.Args["city"] != "Tokyo" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if !strings.Contains(tc.Result, "21.5") {
		t.Errorf("expected weather payload in result, got %q", tc.Result)
	}

	if len(provider.requests) != 2 {
		t.Fatalf("expected initial + follow-up calls, got %d", len(provider.requests))
	}
	// Follow-up carries the tool result and no tool schemas.
	followUp := provider.requests[1]
	if followUp.Tools != nil {
		t.Error("follow-up call must not resend tool schemas")
	}

	entry := store.entries[0]
	if entry.InputTokens != 50 || entry.OutputTokens != 20 {
		t.Errorf("expected summed usage 50/20, got %d/%d", entry.InputTokens, entry.OutputTokens)
	}
	if len(entry.ToolCalls) != 1 || entry.ToolCalls[0].Name != "getWeather" {
		t.Errorf("unexpected recorded tool calls: %+v", entry.ToolCalls)
	}
}

func TestChatSequentialToolCalls(t *testing.T) {
	provider := &fakeProvider{
		name: "hosted",
		results: []*GenerateResult{
			{
				ToolCalls: []ToolCallRequest{
					{ID: "1", Name: "getWeather", Args: map[string]any{"city": "Oslo"}},
					{ID: "2", Name: "getCryptoPrices", Args: map[string]any{}},
				},
			},
			{Text: "Weather and prices."},
		},
	}
	asst, _ := testAssistant(t, provider)

	resp, err := asst.Chat(context.Background(), "req-3", &types.ChatRequest{Message: "both please"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	// Order of execution matches the order requested.
	if resp.ToolCalls[0].Name != "getWeather" || resp.ToolCalls[1].Name != "getCryptoPrices" {
		t.Errorf("tool calls out of order: %+v", resp.ToolCalls)
	}
}

func TestChatNavigateAction(t *testing.T) {
	provider := &fakeProvider{
		name: "hosted",
		results: []*GenerateResult{
			{ToolCalls: []ToolCallRequest{{ID: "1", Name: "navigateTo", Args: map[string]any{"page": "stocks"}}}},
			{Text: "Taking you to stocks."},
		},
	}
	asst, _ := testAssistant(t, provider)

	resp, err := asst.Chat(context.Background(), "req-4", &types.ChatRequest{Message: "show stocks"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Actions == nil || resp.Actions.NavigateTo != "stocks" {
		t.Errorf("expected navigation action, got %+v", resp.Actions)
	}
}

func TestChatFollowUpFailureIsTerminal(t *testing.T) {
	provider := &fakeProvider{
		name: "hosted",
		results: []*GenerateResult{
			{ToolCalls: []ToolCallRequest{{ID: "1", Name: "getWeather", Args: map[string]any{"city": "Oslo"}}}},
		},
		errs: []error{nil, fmt.Errorf("upstream 500")},
	}
	asst, store := testAssistant(t, provider)

	_, err := asst.Chat(context.Background(), "req-5", &types.ChatRequest{Message: "weather"})
	if err == nil {
		t.Fatal("follow-up failure must propagate")
	}

	if len(store.entries) != 1 {
		t.Fatalf("expected usage entry on error too, got %d", len(store.entries))
	}
	if store.entries[0].Status != "error" {
		t.Errorf("expected error status, got %q", store.entries[0].Status)
	}
}

func TestChatHostedFailureDoesNotFallback(t *testing.T) {
	provider := &fakeProvider{
		name: "hosted",
		errs: []error{fmt.Errorf("api error")},
	}
	asst, _ := testAssistant(t, provider)

	_, err := asst.Chat(context.Background(), "req-6", &types.ChatRequest{Message: "hi"})
	if err == nil {
		t.Fatal("hosted provider failure must be terminal")
	}
	if len(provider.requests) != 1 {
		t.Errorf("hosted path must never retry or fall back, got %d calls", len(provider.requests))
	}
}

func TestChatSelfHostedFallback(t *testing.T) {
	provider := &fakeProvider{
		name: "self-hosted",
		errs: []error{fmt.Errorf("tools not supported")},
		results: []*GenerateResult{
			nil,
			{Text: `{"name":"getCryptoPrices","args":{}}`, Usage: types.Usage{InputTokens: 15, OutputTokens: 10}},
			{Text: "Bitcoin is at $64,000.", Usage: types.Usage{InputTokens: 25, OutputTokens: 9}},
		},
	}
	asst, store := testAssistant(t, provider)

	resp, err := asst.Chat(context.Background(), "req-7", &types.ChatRequest{Message: "Bitcoin price?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(resp.Response, "64,000") {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "getCryptoPrices" {
		t.Errorf("expected one crypto tool call, got %+v", resp.ToolCalls)
	}

	if len(provider.requests) != 3 {
		t.Fatalf("expected native attempt + fallback + follow-up, got %d", len(provider.requests))
	}
	// The fallback prompt drops native schemas and carries the text menu.
	fallbackReq := provider.requests[1]
	if fallbackReq.Tools != nil {
		t.Error("fallback call must not include native tool schemas")
	}
	if !strings.Contains(fallbackReq.System, "getCryptoPrices") {
		t.Error("fallback system prompt must enumerate the tools")
	}
	// The tool result goes back as a user-role message.
	followUp := provider.requests[2]
	last := followUp.Messages[len(followUp.Messages)-1]
	if last.Role != "user" || !strings.Contains(last.Content, "Tool result for getCryptoPrices") {
		t.Errorf("unexpected fallback follow-up message: %+v", last)
	}

	entry := store.entries[0]
	if !entry.UsedFallback {
		t.Error("usage entry must flag fallback use")
	}
	if entry.InputTokens != 40 || entry.OutputTokens != 19 {
		t.Errorf("expected summed usage 40/19, got %d/%d", entry.InputTokens, entry.OutputTokens)
	}
}

func TestChatSelfHostedFallbackNoToolCall(t *testing.T) {
	provider := &fakeProvider{
		name: "self-hosted",
		errs: []error{fmt.Errorf("tools not supported")},
		results: []*GenerateResult{
			nil,
			{Text: "I don't need a tool for that. The answer is 42."},
		},
	}
	asst, _ := testAssistant(t, provider)

	resp, err := asst.Chat(context.Background(), "req-8", &types.ChatRequest{Message: "meaning of life"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No JSON in the reply means the raw text is the final answer.
	if resp.Response != "I don't need a tool for that. The answer is 42." {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if resp.ToolCalls != nil {
		t.Error("no tool call must be recorded when parsing finds nothing")
	}
	if len(provider.requests) != 2 {
		t.Errorf("expected native attempt + fallback only, got %d", len(provider.requests))
	}
}

func TestNewProviderSelection(t *testing.T) {
	exec := testExecutor(t)

	// Self-hosted base URL takes precedence over a hosted API key.
	cfg := config.Default()
	cfg.SelfHosted.BaseURL = "http://localhost:11434"
	cfg.Hosted.APIKey = "key"
	asst, err := New(cfg, exec, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asst.Provider().Name() != "self-hosted" {
		t.Errorf("expected self-hosted provider, got %s", asst.Provider().Name())
	}

	cfg = config.Default()
	cfg.Hosted.APIKey = "key"
	asst, err = New(cfg, exec, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asst.Provider().Name() != "hosted" {
		t.Errorf("expected hosted provider, got %s", asst.Provider().Name())
	}

	cfg = config.Default()
	if _, err := New(cfg, exec, nil, nil); err != ErrNoProvider {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestChatSystemInstructionCarriesContext(t *testing.T) {
	provider := &fakeProvider{
		name:    "hosted",
		results: []*GenerateResult{{Text: "ok"}},
	}
	asst, _ := testAssistant(t, provider)

	_, err := asst.Chat(context.Background(), "req-9", &types.ChatRequest{
		Message: "hi",
		Context: &types.DashboardContext{FavoriteCities: []string{"Lisbon"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(provider.requests[0].System, "Lisbon") {
		t.Error("system instruction must carry dashboard context")
	}
}
