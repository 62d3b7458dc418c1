package toolexecutor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ApprovalRequest represents a request to run a confirmation-required tool
type ApprovalRequest struct {
	ToolName string                 `json:"tool"`
	Params   map[string]interface{} `json:"params"`
	AgentID  string                 `json:"agent_id"`
	Timeout  time.Duration          `json:"timeout"`
}

// ApprovalResponse represents the response to an approval request
type ApprovalResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// ApprovalHandler handles approval requests
type ApprovalHandler interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)
}

// ApprovalManager manages the approval workflow
type ApprovalManager struct {
	handler        ApprovalHandler
	defaultTimeout time.Duration
}

// NewApprovalManager creates a new approval manager
func NewApprovalManager(handler ApprovalHandler) *ApprovalManager {
	return &ApprovalManager{
		handler:        handler,
		defaultTimeout: 60 * time.Second,
	}
}

// RequestApproval requests approval for a tool call. It returns whether the
// call was approved and the reason given.
func (am *ApprovalManager) RequestApproval(ctx context.Context, req ApprovalRequest) (bool, string, error) {
	if am.handler == nil {
		return false, "", fmt.Errorf("no approval handler configured")
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = am.defaultTimeout
		req.Timeout = timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info().
		Str("tool", req.ToolName).
		Str("agent_id", req.AgentID).
		Msg("Requesting approval")

	responseChan := make(chan ApprovalResponse, 1)
	errorChan := make(chan error, 1)

	go func() {
		response, err := am.handler.RequestApproval(timeoutCtx, req)
		if err != nil {
			errorChan <- err
		} else {
			responseChan <- response
		}
	}()

	select {
	case response := <-responseChan:
		if response.Approved {
			log.Info().
				Str("tool", req.ToolName).
				Str("reason", response.Reason).
				Msg("Approval granted")
		} else {
			log.Warn().
				Str("tool", req.ToolName).
				Str("reason", response.Reason).
				Msg("Approval denied")
		}
		return response.Approved, response.Reason, nil

	case err := <-errorChan:
		log.Error().
			Err(err).
			Str("tool", req.ToolName).
			Msg("Approval request failed")
		return false, "", fmt.Errorf("approval request failed: %w", err)

	case <-timeoutCtx.Done():
		log.Warn().
			Str("tool", req.ToolName).
			Dur("timeout", timeout).
			Msg("Approval request timed out")
		return false, "timeout", fmt.Errorf("approval request timed out after %v", timeout)
	}
}

// SetDefaultTimeout sets the default timeout for approval requests
func (am *ApprovalManager) SetDefaultTimeout(timeout time.Duration) {
	am.defaultTimeout = timeout
}

// GetDefaultTimeout returns the default timeout
func (am *ApprovalManager) GetDefaultTimeout() time.Duration {
	return am.defaultTimeout
}

// SetHandler sets the approval handler
func (am *ApprovalManager) SetHandler(handler ApprovalHandler) {
	am.handler = handler
}
