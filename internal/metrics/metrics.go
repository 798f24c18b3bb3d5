package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// Collector holds all metrics
type Collector struct {
	requestsTotal    map[string]*atomic.Int64 // by provider
	requestErrors    map[string]*atomic.Int64 // by provider
	fallbackRequests atomic.Int64
	tokensInput      atomic.Int64
	tokensOutput     atomic.Int64
	toolCalls        map[string]*atomic.Int64 // by tool name
	toolErrors       map[string]*atomic.Int64 // by tool name
	mu               sync.RWMutex
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		requestsTotal: make(map[string]*atomic.Int64),
		requestErrors: make(map[string]*atomic.Int64),
		toolCalls:     make(map[string]*atomic.Int64),
		toolErrors:    make(map[string]*atomic.Int64),
	}
}

func (c *Collector) counter(m map[string]*atomic.Int64, key string) *atomic.Int64 {
	c.mu.Lock()
	ctr, ok := m[key]
	if !ok {
		ctr = &atomic.Int64{}
		m[key] = ctr
	}
	c.mu.Unlock()
	return ctr
}

// IncrementRequests increments the chat request counter for a provider
func (c *Collector) IncrementRequests(provider string) {
	c.counter(c.requestsTotal, provider).Add(1)
}

// IncrementRequestErrors increments the failed request counter for a provider
func (c *Collector) IncrementRequestErrors(provider string) {
	c.counter(c.requestErrors, provider).Add(1)
}

// IncrementFallback increments the fallback protocol counter
func (c *Collector) IncrementFallback() {
	c.fallbackRequests.Add(1)
}

// AddTokens adds token usage
func (c *Collector) AddTokens(input, output int) {
	c.tokensInput.Add(int64(input))
	c.tokensOutput.Add(int64(output))
}

// IncrementToolCall increments the tool call counter
func (c *Collector) IncrementToolCall(toolName string) {
	c.counter(c.toolCalls, toolName).Add(1)
}

// IncrementToolError increments the tool error counter
func (c *Collector) IncrementToolError(toolName string) {
	c.counter(c.toolErrors, toolName).Add(1)
}

func snapshot(m map[string]*atomic.Int64, mu *sync.RWMutex) map[string]int64 {
	mu.RLock()
	defer mu.RUnlock()
	result := make(map[string]int64)
	for k, ctr := range m {
		result[k] = ctr.Load()
	}
	return result
}

// GetRequestsTotal returns request counts by provider
func (c *Collector) GetRequestsTotal() map[string]int64 {
	return snapshot(c.requestsTotal, &c.mu)
}

// GetRequestErrors returns failed request counts by provider
func (c *Collector) GetRequestErrors() map[string]int64 {
	return snapshot(c.requestErrors, &c.mu)
}

// GetFallbackRequests returns the fallback protocol count
func (c *Collector) GetFallbackRequests() int64 {
	return c.fallbackRequests.Load()
}

// GetTokensTotal returns token counts
func (c *Collector) GetTokensTotal() (input, output int64) {
	return c.tokensInput.Load(), c.tokensOutput.Load()
}

// GetToolCalls returns tool call counts
func (c *Collector) GetToolCalls() map[string]int64 {
	return snapshot(c.toolCalls, &c.mu)
}

// GetToolErrors returns tool error counts
func (c *Collector) GetToolErrors() map[string]int64 {
	return snapshot(c.toolErrors, &c.mu)
}

// WritePrometheus writes metrics in Prometheus text format
func (c *Collector) WritePrometheus(w io.Writer) {
	fmt.Fprintln(w, "# HELP lifedash_requests_total Total chat requests by provider")
	fmt.Fprintln(w, "# TYPE lifedash_requests_total counter")
	requests := c.GetRequestsTotal()
	for _, p := range sortedKeys(requests) {
		fmt.Fprintf(w, "lifedash_requests_total{provider=%q} %d\n", p, requests[p])
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "# HELP lifedash_request_errors_total Failed chat requests by provider")
	fmt.Fprintln(w, "# TYPE lifedash_request_errors_total counter")
	errors := c.GetRequestErrors()
	for _, p := range sortedKeys(errors) {
		fmt.Fprintf(w, "lifedash_request_errors_total{provider=%q} %d\n", p, errors[p])
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "# HELP lifedash_fallback_requests_total Requests served via the text tool-call fallback")
	fmt.Fprintln(w, "# TYPE lifedash_fallback_requests_total counter")
	fmt.Fprintf(w, "lifedash_fallback_requests_total %d\n", c.GetFallbackRequests())

	fmt.Fprintln(w)

	input, output := c.GetTokensTotal()
	fmt.Fprintln(w, "# HELP lifedash_tokens_total Total tokens used")
	fmt.Fprintln(w, "# TYPE lifedash_tokens_total counter")
	fmt.Fprintf(w, "lifedash_tokens_total{type=\"input\"} %d\n", input)
	fmt.Fprintf(w, "lifedash_tokens_total{type=\"output\"} %d\n", output)

	fmt.Fprintln(w)

	fmt.Fprintln(w, "# HELP lifedash_tool_calls_total Tool calls by tool name")
	fmt.Fprintln(w, "# TYPE lifedash_tool_calls_total counter")
	toolCalls := c.GetToolCalls()
	for _, name := range sortedKeys(toolCalls) {
		fmt.Fprintf(w, "lifedash_tool_calls_total{tool=%q} %d\n", name, toolCalls[name])
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "# HELP lifedash_tool_errors_total Tool errors by tool name")
	fmt.Fprintln(w, "# TYPE lifedash_tool_errors_total counter")
	toolErrors := c.GetToolErrors()
	for _, name := range sortedKeys(toolErrors) {
		fmt.Fprintf(w, "lifedash_tool_errors_total{tool=%q} %d\n", name, toolErrors[name])
	}
}

// sortedKeys returns sorted keys of a map
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handler returns an HTTP handler for the metrics endpoint
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.WritePrometheus(w)
	}
}

// Global collector instance
var defaultCollector = NewCollector()

// Default returns the default metrics collector
func Default() *Collector {
	return defaultCollector
}

// IncrementRequests increments requests on the default collector
func IncrementRequests(provider string) {
	defaultCollector.IncrementRequests(provider)
}

// IncrementRequestErrors increments request errors on the default collector
func IncrementRequestErrors(provider string) {
	defaultCollector.IncrementRequestErrors(provider)
}

// IncrementFallback increments the fallback counter on the default collector
func IncrementFallback() {
	defaultCollector.IncrementFallback()
}

// AddTokens adds tokens on the default collector
func AddTokens(input, output int) {
	defaultCollector.AddTokens(input, output)
}

// RecordToolCall records a tool call outcome on the default collector
func RecordToolCall(toolName string, ok bool) {
	defaultCollector.IncrementToolCall(toolName)
	if !ok {
		defaultCollector.IncrementToolError(toolName)
	}
}

// Handler returns the default collector's HTTP handler
func Handler() http.HandlerFunc {
	return defaultCollector.Handler()
}
