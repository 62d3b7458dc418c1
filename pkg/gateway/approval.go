package gateway

import (
	"context"

	"github.com/kartikay/folio/pkg/scheduler"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

// ApprovalForwarder announces pending tool approvals to gateway clients
type ApprovalForwarder struct {
	server *Server
}

var _ toolexecutor.ApprovalForwarder = (*ApprovalForwarder)(nil)

// NewApprovalForwarder creates a new approval forwarder
func NewApprovalForwarder(server *Server) *ApprovalForwarder {
	return &ApprovalForwarder{server: server}
}

// ForwardApproval broadcasts a tool.approval_request event
func (f *ApprovalForwarder) ForwardApproval(_ context.Context, pending toolexecutor.PendingApproval) error {
	data := map[string]interface{}{
		"approval_id": pending.ID,
		"tool":        pending.Request.ToolName,
		"params":      pending.Request.Params,
		"agent_id":    pending.Request.AgentID,
		"timeout_ms":  pending.Request.Timeout.Milliseconds(),
		"created_at":  pending.CreatedAt.UnixMilli(),
	}
	if !pending.ExpiresAt.IsZero() {
		data["expires_at"] = pending.ExpiresAt.UnixMilli()
	}

	f.server.BroadcastTyped(EventMessage{
		Event:   "tool.approval_request",
		Stream:  StreamTypeTool,
		Phase:   "approval_required",
		AgentID: pending.Request.AgentID,
		Data:    data,
	})

	return nil
}

// PublishTaskEvent broadcasts a scheduler event as task.<action>
func (s *Server) PublishTaskEvent(evt scheduler.Event) {
	s.broadcaster.BroadcastTyped(EventMessage{
		Event:   "task." + string(evt.Action),
		Stream:  StreamTypeTask,
		Phase:   evt.Status,
		AgentID: evt.AgentID,
		Data:    evt,
	})
}
