package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kartikay/folio/pkg/runtime"
)

// ToolPolicy defines which tools an agent can use
type ToolPolicy struct {
	Allow []string `json:"allow"` // List of allowed tools (* for all)
	Deny  []string `json:"deny"`  // List of denied tools (overrides allow)
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		// No policy means allow all
		return true
	}

	// Check deny list first (overrides allow list)
	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	// If no explicit allow, deny by default
	return false
}

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, execCtx *ExecutionContext, params map[string]interface{}) (interface{}, error)

// ToolDefinition defines a tool's metadata and handler.
//
// A tool without Handler requires confirmation: its implementation is
// registered separately with RegisterExecution and only runs through
// ExecuteConfirmed.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  []ToolParameter        `json:"parameters,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"` // Overrides Parameters when set
	Handler     ToolHandler            `json:"-"`
}

// RequiresConfirmation reports whether the tool needs human approval
func (d *ToolDefinition) RequiresConfirmation() bool {
	return d.Handler == nil
}

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	Agent      runtime.Agent // Agent the call runs in; may be nil
	SessionKey string
	Timeout    time.Duration
	ToolPolicy *ToolPolicy
}

// AgentID returns the ID of the agent, or "" without one
func (ec *ExecutionContext) AgentID() string {
	if ec == nil || ec.Agent == nil {
		return ""
	}
	return ec.Agent.ID()
}

// ErrorKind classifies tool failures
type ErrorKind string

const (
	ErrorKindSchemaMismatch       ErrorKind = "schema_mismatch"
	ErrorKindMissingAgentContext  ErrorKind = "missing_agent_context"
	ErrorKindSchedulingFailure    ErrorKind = "scheduling_failure"
	ErrorKindToolNotFound         ErrorKind = "tool_not_found"
	ErrorKindConfirmationRequired ErrorKind = "confirmation_required"
	ErrorKindApprovalDenied       ErrorKind = "approval_denied"
	ErrorKindPolicyDenied         ErrorKind = "policy_denied"
	ErrorKindTimeout              ErrorKind = "timeout"
	ErrorKindExecutionFailed      ErrorKind = "execution_failed"
)

// ToolError is a classified tool failure. Handlers return it to pick the
// kind and the text shown to the model.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *ToolError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a ToolError
func NewToolError(kind ErrorKind, err error, format string, args ...interface{}) *ToolError {
	return &ToolError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// KindOf returns the kind of err, ErrorKindExecutionFailed for plain errors
func KindOf(err error) ErrorKind {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Kind
	}
	return ErrorKindExecutionFailed
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Tool      string                 `json:"tool"`
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     *ToolError             `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Failed reports whether the result carries an error of kind
func (r ToolResult) Failed(kind ErrorKind) bool {
	return r.Error != nil && r.Error.Kind == kind
}

// ExecutionObserver receives one notification per finished tool call
type ExecutionObserver interface {
	ObserveToolExecution(tool string, status string, duration time.Duration)
}
