// Package tracing carries trace and run identifiers through contexts and
// into OpenTelemetry spans and log lines.
package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for run ID
	RunIDKey ContextKey = "run_id"
	// AgentIDKey is the context key for agent ID
	AgentIDKey ContextKey = "agent_id"
	// TaskIDKey is the context key for the scheduled task being run
	TaskIDKey ContextKey = "task_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID string
	RunID   string
	AgentID string
	TaskID  string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithAgentID adds an agent ID to the context
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// WithTaskID adds a task ID to the context
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, TaskIDKey, taskID)
}

func getString(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	return getString(ctx, RunIDKey)
}

// GetAgentID retrieves the agent ID from the context
func GetAgentID(ctx context.Context) string {
	return getString(ctx, AgentIDKey)
}

// GetTaskID retrieves the task ID from the context
func GetTaskID(ctx context.Context) string {
	return getString(ctx, TaskIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID: GetTraceID(ctx),
		RunID:   GetRunID(ctx),
		AgentID: GetAgentID(ctx),
		TaskID:  GetTaskID(ctx),
	}
}

// NewAgentRunContext creates a new context for an agent run with a new run ID
func NewAgentRunContext(ctx context.Context, agentID string) context.Context {
	ctx = WithRunID(ctx, NewRunID())
	return WithAgentID(ctx, agentID)
}

// NewTaskRunContext creates the context a fired task runs in
func NewTaskRunContext(ctx context.Context, agentID string, taskID string) context.Context {
	return WithTaskID(NewAgentRunContext(ctx, agentID), taskID)
}

// Logger adds the tracing fields of ctx to logger
func Logger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	logCtx := logger.With()
	if tc.TraceID != "" {
		logCtx = logCtx.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		logCtx = logCtx.Str("run_id", tc.RunID)
	}
	if tc.AgentID != "" {
		logCtx = logCtx.Str("agent_id", tc.AgentID)
	}
	if tc.TaskID != "" {
		logCtx = logCtx.Str("taskId", tc.TaskID)
	}
	return logCtx.Logger()
}
