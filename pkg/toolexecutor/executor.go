package toolexecutor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kartikay/folio/internal/observability"
	"github.com/kartikay/folio/internal/tracing"
)

const defaultTimeout = 30 * time.Second

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools           map[string]*ToolDefinition
	schemas         map[string]*gojsonschema.Schema
	executions      map[string]ToolHandler
	approvalManager *ApprovalManager
	observer        ExecutionObserver
	mu              sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	te := &ToolExecutor{
		tools:      make(map[string]*ToolDefinition),
		schemas:    make(map[string]*gojsonschema.Schema),
		executions: make(map[string]ToolHandler),
	}

	log.Debug().Msg("Tool executor initialized")

	return te
}

// SetApprovalManager sets the approval manager used by ExecuteConfirmed
func (te *ToolExecutor) SetApprovalManager(manager *ApprovalManager) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.approvalManager = manager
}

// SetObserver sets the execution observer
func (te *ToolExecutor) SetObserver(observer ExecutionObserver) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.observer = observer
}

// RegisterTool registers a new tool. Names are unique.
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := te.validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := te.compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema

	log.Debug().
		Str("tool", def.Name).
		Bool("requires_confirmation", def.RequiresConfirmation()).
		Msg("Tool registered")

	return nil
}

// RegisterExecution registers the implementation of a confirmation-required tool
func (te *ToolExecutor) RegisterExecution(name string, handler ToolHandler) error {
	if handler == nil {
		return fmt.Errorf("execution handler cannot be nil")
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	tool, exists := te.tools[name]
	if !exists {
		return fmt.Errorf("tool not found: %s", name)
	}
	if !tool.RequiresConfirmation() {
		return fmt.Errorf("tool %s executes automatically and takes no separate execution", name)
	}

	te.executions[name] = handler
	return nil
}

// GetTool returns a tool definition by name
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.tools[name]
}

// ListTools returns all registered tool names, sorted
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	tools := make([]string, 0, len(te.tools))
	for name := range te.tools {
		tools = append(tools, name)
	}
	sort.Strings(tools)

	return tools
}

// Definitions returns all tool definitions sorted by name
func (te *ToolExecutor) Definitions() []ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(te.tools))
	for _, def := range te.tools {
		defs = append(defs, *def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	return defs
}

// ConfirmationRequired returns the sorted names of tools without a handler
func (te *ToolExecutor) ConfirmationRequired() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	names := []string{}
	for name, def := range te.tools {
		if def.RequiresConfirmation() {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names
}

// GetToolCount returns the number of registered tools
func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return len(te.tools)
}

// Execute executes an auto-executing tool. Confirmation-required tools are
// never run here; the result reports ErrorKindConfirmationRequired instead.
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) ToolResult {
	tool, failure := te.prepare(toolName, params, execCtx)
	if failure != nil {
		return te.finish(toolName, *failure, time.Now())
	}

	if tool.RequiresConfirmation() {
		log.Debug().Str("tool", toolName).Msg("Tool requires confirmation")
		return te.finish(toolName, failed(toolName, NewToolError(ErrorKindConfirmationRequired, nil,
			"tool '%s' requires confirmation before it can run", toolName)), time.Now())
	}

	return te.run(ctx, toolName, tool.Handler, params, execCtx)
}

// ExecuteConfirmed asks for approval and, if granted, runs the registered
// execution of a confirmation-required tool.
func (te *ToolExecutor) ExecuteConfirmed(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) ToolResult {
	tool, failure := te.prepare(toolName, params, execCtx)
	if failure != nil {
		return te.finish(toolName, *failure, time.Now())
	}
	if !tool.RequiresConfirmation() {
		return te.run(ctx, toolName, tool.Handler, params, execCtx)
	}

	te.mu.RLock()
	handler := te.executions[toolName]
	manager := te.approvalManager
	te.mu.RUnlock()

	start := time.Now()

	if handler == nil {
		return te.finish(toolName, failed(toolName, NewToolError(ErrorKindExecutionFailed, nil,
			"no implementation found for confirmation-required tool '%s'", toolName)), start)
	}
	if manager == nil {
		return te.finish(toolName, failed(toolName, NewToolError(ErrorKindApprovalDenied, nil,
			"no approval channel configured for tool '%s'", toolName)), start)
	}

	approved, reason, err := manager.RequestApproval(ctx, ApprovalRequest{
		ToolName: toolName,
		Params:   params,
		AgentID:  execCtx.AgentID(),
	})
	if err != nil {
		observability.RecordApprovalAudit(ctx, toolName, execCtx.AgentID(), false, err.Error())
		return te.finish(toolName, failed(toolName, NewToolError(ErrorKindApprovalDenied, err,
			"approval for tool '%s' failed: %v", toolName, err)), start)
	}
	observability.RecordApprovalAudit(ctx, toolName, execCtx.AgentID(), approved, reason)
	if !approved {
		return te.finish(toolName, failed(toolName, NewToolError(ErrorKindApprovalDenied, nil,
			"user denied tool '%s' (%s)", toolName, reason)), start)
	}

	return te.run(ctx, toolName, handler, params, execCtx)
}

// prepare looks up the tool, applies the policy and validates params
func (te *ToolExecutor) prepare(toolName string, params map[string]interface{}, execCtx *ExecutionContext) (*ToolDefinition, *ToolResult) {
	if execCtx != nil && execCtx.ToolPolicy != nil && !execCtx.ToolPolicy.IsToolAllowed(toolName) {
		log.Warn().
			Str("tool", toolName).
			Str("agent_id", execCtx.AgentID()).
			Msg("Tool execution blocked by policy")
		result := failed(toolName, NewToolError(ErrorKindPolicyDenied, nil,
			"tool '%s' is not allowed by agent policy", toolName))
		return nil, &result
	}

	te.mu.RLock()
	tool := te.tools[toolName]
	schema := te.schemas[toolName]
	te.mu.RUnlock()

	if tool == nil {
		log.Error().Str("tool", toolName).Msg("Tool not found")
		result := failed(toolName, NewToolError(ErrorKindToolNotFound, nil, "tool not found: %s", toolName))
		return nil, &result
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if err := te.validateParameters(schema, params); err != nil {
		log.Error().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		result := failed(toolName, NewToolError(ErrorKindSchemaMismatch, err,
			"parameter validation failed: %v", err))
		return nil, &result
	}

	return tool, nil
}

// run traces one handler invocation
func (te *ToolExecutor) run(ctx context.Context, toolName string, handler ToolHandler, params map[string]interface{}, execCtx *ExecutionContext) ToolResult {
	startTime := time.Now()

	ctx, span := tracing.StartSpan(ctx, "folio/toolexecutor", "tool.execute",
		attribute.String("tool.name", toolName),
		attribute.String("agent.id", execCtx.AgentID()),
	)
	result := te.invoke(ctx, toolName, handler, params, execCtx, startTime)
	if result.Success {
		tracing.EndSpan(span, nil)
	} else {
		span.SetAttributes(attribute.String("tool.error_kind", string(result.Error.Kind)))
		tracing.EndSpan(span, result.Error)
	}
	return result
}

// invoke runs handler under the call timeout
func (te *ToolExecutor) invoke(ctx context.Context, toolName string, handler ToolHandler, params map[string]interface{}, execCtx *ExecutionContext, startTime time.Time) ToolResult {
	log.Debug().Str("tool", toolName).Msg("Executing tool")

	timeout := defaultTimeout
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if params == nil {
		params = map[string]interface{}{}
	}

	type outcome struct {
		output interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		output, err := handler(timeoutCtx, execCtx, params)
		done <- outcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			log.Error().
				Str("tool", toolName).
				Dur("duration", time.Since(startTime)).
				Err(out.err).
				Msg("Tool execution failed")

			toolErr, ok := out.err.(*ToolError)
			if !ok {
				toolErr = &ToolError{Kind: KindOf(out.err), Message: out.err.Error(), Err: out.err}
			}
			return te.finish(toolName, failed(toolName, toolErr), startTime)
		}

		output, truncated := te.truncateOutput(out.output)
		return te.finish(toolName, ToolResult{
			Tool:      toolName,
			Success:   true,
			Output:    output,
			Truncated: truncated,
		}, startTime)

	case <-timeoutCtx.Done():
		log.Error().
			Str("tool", toolName).
			Dur("duration", time.Since(startTime)).
			Msg("Tool execution timeout")

		return te.finish(toolName, failed(toolName, NewToolError(ErrorKindTimeout, timeoutCtx.Err(),
			"tool execution timeout after %v", timeout)), startTime)
	}
}

// finish stamps the duration and notifies the observer
func (te *ToolExecutor) finish(toolName string, result ToolResult, startTime time.Time) ToolResult {
	duration := time.Since(startTime)
	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{}
	}
	result.Metadata["duration"] = duration.Milliseconds()

	status := "ok"
	if !result.Success {
		status = string(result.Error.Kind)
	}

	log.Debug().
		Str("tool", toolName).
		Str("status", status).
		Dur("duration", duration).
		Bool("truncated", result.Truncated).
		Msg("Tool execution completed")

	te.mu.RLock()
	observer := te.observer
	te.mu.RUnlock()
	if observer != nil {
		observer.ObserveToolExecution(toolName, status, duration)
	}

	return result
}

func failed(toolName string, err *ToolError) ToolResult {
	return ToolResult{
		Tool:    toolName,
		Success: false,
		Error:   err,
	}
}

// validateToolDefinition validates a tool definition
func (te *ToolExecutor) validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.InputSchema != nil && len(def.Parameters) > 0 {
		return fmt.Errorf("tool %s sets both parameters and input schema", def.Name)
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}

	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// SchemaFor returns the JSON schema of a tool as a map
func SchemaFor(def ToolDefinition) map[string]interface{} {
	if def.InputSchema != nil {
		return def.InputSchema
	}

	properties := make(map[string]interface{})
	required := []interface{}{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}

		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return schemaMap
}

// compileSchema compiles the JSON schema of a tool
func (te *ToolExecutor) compileSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(SchemaFor(def)))
}

// validateParameters validates parameters against a JSON Schema
func (te *ToolExecutor) validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}

// truncateOutput truncates string output above 10KB. Structured output is
// returned as is.
func (te *ToolExecutor) truncateOutput(output interface{}) (interface{}, bool) {
	const maxSize = 10 * 1024

	str, ok := output.(string)
	if !ok || len(str) <= maxSize {
		return output, false
	}

	log.Warn().
		Int("original", len(str)).
		Int("truncated", maxSize).
		Msg("Output truncated")

	return str[:maxSize] + "\n... [output truncated]", true
}
