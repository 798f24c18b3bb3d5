package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestOllamaClient(handler http.HandlerFunc, clientID, clientSecret string) (*OllamaClient, func()) {
	srv := httptest.NewServer(handler)
	client := NewOllamaClient(srv.URL, "llama-test", clientID, clientSecret)
	return client, srv.Close
}

func TestOllamaGenerateText(t *testing.T) {
	var captured OllamaRequest
	client, cleanup := newTestOllamaClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model":"llama-test",
			"message":{"role":"assistant","content":"Hi!"},
			"done":true,
			"prompt_eval_count":18,
			"eval_count":6
		}`))
	}, "", "")
	defer cleanup()

	result, err := client.Generate(context.Background(), GenerateRequest{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Text != "Hi!" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Usage.InputTokens != 18 || result.Usage.OutputTokens != 6 {
		t.Errorf("unexpected usage: %+v", result.Usage)
	}

	if captured.Stream {
		t.Error("requests must disable streaming")
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "be brief" {
		t.Errorf("system instruction must be the first message, got %+v", captured.Messages[0])
	}
}

func TestOllamaGenerateToolCall(t *testing.T) {
	client, cleanup := newTestOllamaClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model":"llama-test",
			"message":{"role":"assistant","content":"","tool_calls":[
				{"function":{"name":"getStockQuote","arguments":{"symbol":"AAPL"}}}
			]},
			"done":true
		}`))
	}, "", "")
	defer cleanup()

	result, err := client.Generate(context.Background(), GenerateRequest{
		Messages: []Message{{Role: "user", Content: "apple stock?"}},
		Tools:    []map[string]any{{"type": "function"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.ToolCalls))
	}
	if result.ToolCalls[0].Name != "getStockQuote" || result.ToolCalls[0].Args["symbol"] != "AAPL" {
		t.Errorf("unexpected tool call: %+v", result.ToolCalls[0])
	}
}

func TestOllamaGatewayHeaders(t *testing.T) {
	client, cleanup := newTestOllamaClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("CF-Access-Client-Id") != "id-123" {
			t.Errorf("expected access client ID header, got %q", r.Header.Get("CF-Access-Client-Id"))
		}
		if r.Header.Get("CF-Access-Client-Secret") != "secret-456" {
			t.Errorf("expected access client secret header, got %q", r.Header.Get("CF-Access-Client-Secret"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama-test","message":{"role":"assistant","content":"ok"},"done":true}`))
	}, "id-123", "secret-456")
	defer cleanup()

	if _, err := client.Generate(context.Background(), GenerateRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOllamaAPIError(t *testing.T) {
	client, cleanup := newTestOllamaClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"model does not support tools"}`))
	}, "", "")
	defer cleanup()

	_, err := client.Generate(context.Background(), GenerateRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools:    []map[string]any{{"type": "function"}},
	})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "does not support tools") {
		t.Errorf("expected upstream message in error, got %v", err)
	}
}

func TestOllamaModelOverride(t *testing.T) {
	var captured OllamaRequest
	client, cleanup := newTestOllamaClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"other","message":{"role":"assistant","content":"ok"},"done":true}`))
	}, "", "")
	defer cleanup()

	if _, err := client.Generate(context.Background(), GenerateRequest{
		Model:    "other",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Model != "other" {
		t.Errorf("expected per-request model override, got %q", captured.Model)
	}
}

func TestOllamaName(t *testing.T) {
	client := NewOllamaClient("http://localhost:11434/", "", "", "")
	if client.Name() != "self-hosted" {
		t.Errorf("expected provider name 'self-hosted', got %q", client.Name())
	}
	if client.baseURL != "http://localhost:11434" {
		t.Errorf("trailing slash must be trimmed, got %q", client.baseURL)
	}
	if client.model != defaultOllamaModel {
		t.Errorf("expected default model, got %q", client.model)
	}
}
