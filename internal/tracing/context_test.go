package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithAgentID(ctx, "alice")
	ctx = WithTaskID(ctx, "task-1")

	tc := FromContext(ctx)
	if tc.TraceID != "trace-1" || tc.RunID != "run-1" || tc.AgentID != "alice" || tc.TaskID != "task-1" {
		t.Errorf("unexpected trace context: %+v", tc)
	}
}

func TestGettersEmpty(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" || GetRunID(ctx) != "" || GetAgentID(ctx) != "" || GetTaskID(ctx) != "" {
		t.Error("expected empty values from a bare context")
	}
}

func TestNewTaskRunContext(t *testing.T) {
	ctx := NewTaskRunContext(context.Background(), "alice", "task-1")

	if GetRunID(ctx) == "" {
		t.Error("expected a run ID")
	}
	if GetAgentID(ctx) != "alice" {
		t.Errorf("expected agent alice, got %s", GetAgentID(ctx))
	}
	if GetTaskID(ctx) != "task-1" {
		t.Errorf("expected task task-1, got %s", GetTaskID(ctx))
	}

	other := NewTaskRunContext(context.Background(), "alice", "task-1")
	if GetRunID(ctx) == GetRunID(other) {
		t.Error("expected distinct run IDs")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := NewTaskRunContext(WithTraceID(context.Background(), "trace-1"), "alice", "task-1")
	logger := Logger(ctx, base)
	logger.Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"trace_id":"trace-1"`, `"agent_id":"alice"`, `"taskId":"task-1"`, `"run_id":"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %s missing %s", out, want)
		}
	}
}

func TestStartSpan(t *testing.T) {
	if err := InitOpenTelemetry("folio-test", "0.0.0"); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "folio/test", "test.span")
	if GetTraceID(ctx) == "" {
		t.Error("expected StartSpan to set a trace ID")
	}
	if !span.SpanContext().IsValid() {
		t.Error("expected a valid span context")
	}
	if GetTraceID(ctx) != span.SpanContext().TraceID().String() {
		t.Error("expected the context trace ID to match the span")
	}
	EndSpan(span, errors.New("boom"))

	// Child spans keep the parent trace
	child, childSpan := StartSpan(ctx, "folio/test", "test.child")
	if GetTraceID(child) != GetTraceID(ctx) {
		t.Error("expected child span to share the trace ID")
	}
	EndSpan(childSpan, nil)
}
