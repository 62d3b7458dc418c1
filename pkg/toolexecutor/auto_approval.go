package toolexecutor

import "context"

// AutoApprovalHandler approves every request without user interaction.
type AutoApprovalHandler struct{}

// RequestApproval implements ApprovalHandler.
func (AutoApprovalHandler) RequestApproval(_ context.Context, _ ApprovalRequest) (ApprovalResponse, error) {
	return ApprovalResponse{Approved: true, Reason: "auto-approved"}, nil
}

// DenyAllHandler denies every request. Used when no approval channel exists.
type DenyAllHandler struct{}

// RequestApproval implements ApprovalHandler.
func (DenyAllHandler) RequestApproval(_ context.Context, _ ApprovalRequest) (ApprovalResponse, error) {
	return ApprovalResponse{Approved: false, Reason: "no approval channel"}, nil
}
