package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/kartikay/folio/pkg/toolexecutor"
)

// registerBuiltinMethods registers all built-in RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod("tools.list", s.handleToolsList)
	_ = s.RegisterMethod("tools.call", s.handleToolsCall)
	_ = s.RegisterMethod("tasks.list", s.handleTasksList)
	_ = s.RegisterMethod("tasks.cancel", s.handleTasksCancel)
	_ = s.RegisterMethod("chat.send", s.handleChatSend)
	_ = s.RegisterMethod("sessions.history", s.handleSessionsHistory)
	_ = s.RegisterMethod("gateway.clients", func(context.Context, map[string]interface{}) (interface{}, error) {
		return s.GetConnectedClients(), nil
	})

	if s.config.Approvals != nil {
		_ = s.RegisterMethod("tools.approve", s.handleToolsApprove)
		_ = s.RegisterMethod("approvals.list", func(context.Context, map[string]interface{}) (interface{}, error) {
			return s.config.Approvals.List(), nil
		})
	}
}

// ToolInfo describes a tool to gateway clients
type ToolInfo struct {
	Name                 string                 `json:"name"`
	Description          string                 `json:"description"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	RequiresConfirmation bool                   `json:"requiresConfirmation"`
}

func (s *Server) handleToolsList(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	defs := s.config.Tools.Definitions()
	tools := make([]ToolInfo, 0, len(defs))
	for _, def := range defs {
		if !s.config.ToolPolicy.IsToolAllowed(def.Name) {
			continue
		}
		tools = append(tools, ToolInfo{
			Name:                 def.Name,
			Description:          def.Description,
			InputSchema:          toolexecutor.SchemaFor(def),
			RequiresConfirmation: def.RequiresConfirmation(),
		})
	}
	return tools, nil
}

// handleToolsCall runs a tool for a session. Confirmation-required tools go
// through the approval queue, so the call blocks until tools.approve.
func (s *Server) handleToolsCall(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := requireString(params, "tool")
	if err != nil {
		return nil, err
	}

	args := map[string]interface{}{}
	if raw, ok := params["args"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &RPCError{Code: InvalidParams, Message: "args must be an object"}
		}
		args = m
	}

	sess := s.config.Sessions.Session(s.sessionKey(params))
	execCtx := &toolexecutor.ExecutionContext{
		Agent:      sess,
		SessionKey: sess.ID(),
		Timeout:    s.config.ToolTimeout,
		ToolPolicy: s.config.ToolPolicy,
	}

	result := s.config.Tools.Execute(ctx, name, args, execCtx)
	if result.Failed(toolexecutor.ErrorKindConfirmationRequired) && s.config.Approvals != nil {
		result = s.config.Tools.ExecuteConfirmed(ctx, name, args, execCtx)
	}

	response := map[string]interface{}{
		"tool":    name,
		"success": result.Success,
		"output":  toolexecutor.Render(result),
	}
	if result.Error != nil {
		response["kind"] = string(result.Error.Kind)
	}
	if result.Truncated {
		response["truncated"] = true
	}
	return response, nil
}

func (s *Server) handleToolsApprove(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requireString(params, "approvalId")
	if err != nil {
		return nil, err
	}
	approved, ok := params["approved"].(bool)
	if !ok {
		return nil, &RPCError{Code: InvalidParams, Message: "approved must be a boolean"}
	}

	if err := s.config.Approvals.Resolve(id, approved, actorFromContext(ctx)); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}

	return map[string]interface{}{"success": true}, nil
}

func (s *Server) handleTasksList(_ context.Context, params map[string]interface{}) (interface{}, error) {
	agentID, _ := params["sessionKey"].(string)
	return s.config.Tasks.List(strings.TrimSpace(agentID)), nil
}

func (s *Server) handleTasksCancel(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requireString(params, "taskId")
	if err != nil {
		return nil, err
	}
	agentID, _ := params["sessionKey"].(string)

	canceled, err := s.config.Tasks.Cancel(ctx, strings.TrimSpace(agentID), id)
	if err != nil {
		return nil, err
	}
	if !canceled {
		return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("task not found: %s", id)}
	}

	return map[string]interface{}{"taskId": id, "canceled": true}, nil
}

func (s *Server) handleChatSend(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	message, err := requireString(params, "message")
	if err != nil {
		return nil, err
	}
	if !s.config.Sessions.HasRunner() {
		return nil, fmt.Errorf("no model provider configured")
	}

	result, err := s.config.Sessions.Chat(ctx, s.sessionKey(params), message)
	if err != nil {
		return nil, fmt.Errorf("agent execution failed: %w", err)
	}

	return map[string]interface{}{
		"response":   result.Response,
		"toolCalls":  result.ToolCalls,
		"usage":      result.Usage,
		"sessionKey": result.SessionKey,
	}, nil
}

func (s *Server) handleSessionsHistory(_ context.Context, params map[string]interface{}) (interface{}, error) {
	return s.config.Sessions.Session(s.sessionKey(params)).History(), nil
}

func (s *Server) sessionKey(params map[string]interface{}) string {
	if key, ok := params["sessionKey"].(string); ok && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key)
	}
	return s.config.DefaultSession
}

func requireString(params map[string]interface{}, key string) (string, error) {
	value, ok := params[key].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", &RPCError{Code: InvalidParams, Message: fmt.Sprintf("%s is required", key)}
	}
	return strings.TrimSpace(value), nil
}
