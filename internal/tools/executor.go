package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/lifedash/lifedash/internal/logger"
	"github.com/lifedash/lifedash/internal/metrics"
)

// Invocation is the outcome of one tool call. Result is always a JSON
// payload; failures are reported inside Result, never as a returned error.
type Invocation struct {
	Name     string
	Args     map[string]any
	Result   string
	Duration time.Duration
	Err      string
}

// Executor runs tool calls against a registry. It never propagates handler
// failures to the caller: every outcome becomes a JSON result the model can
// read and recover from.
type Executor struct {
	registry *Registry
	log      *logger.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.New("tools", "info")
	}
	return &Executor{registry: registry, log: log}
}

// Registry returns the underlying tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs a single tool call and returns its outcome. The duration is
// measured even when the tool is unknown or the handler fails.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) Invocation {
	start := time.Now()
	inv := Invocation{Name: name, Args: args}

	tool := e.registry.Get(name)
	if tool == nil {
		msg := fmt.Sprintf("Unknown tool: %s", name)
		inv.Result = ErrorPayload(msg)
		inv.Err = msg
		inv.Duration = time.Since(start)
		metrics.RecordToolCall(name, false)
		e.log.Warn("tool call rejected: %s", msg)
		return inv
	}

	result, err := tool.Handler(ctx, args)
	inv.Duration = time.Since(start)
	if err != nil {
		inv.Result = ErrorPayload(err.Error())
		inv.Err = err.Error()
		metrics.RecordToolCall(name, false)
		e.log.Warn("tool %s failed after %s: %v", name, inv.Duration, err)
		return inv
	}

	inv.Result = result
	metrics.RecordToolCall(name, true)
	e.log.Debug("tool %s completed in %s", name, inv.Duration)
	return inv
}
