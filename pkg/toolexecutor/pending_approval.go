package toolexecutor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// PendingApproval is an approval request waiting for a remote decision
type PendingApproval struct {
	ID        string          `json:"id"`
	Request   ApprovalRequest `json:"request"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`

	decision chan ApprovalResponse
}

// ApprovalForwarder announces a pending approval to whoever can decide it
type ApprovalForwarder interface {
	ForwardApproval(ctx context.Context, pending PendingApproval) error
}

// PendingApprovals is an ApprovalHandler that parks requests until Resolve
// is called, e.g. from a gateway client.
type PendingApprovals struct {
	mu        sync.Mutex
	pending   map[string]*PendingApproval
	forwarder ApprovalForwarder
}

// NewPendingApprovals creates an empty queue
func NewPendingApprovals() *PendingApprovals {
	return &PendingApprovals{
		pending: make(map[string]*PendingApproval),
	}
}

// SetForwarder sets where new requests are announced
func (p *PendingApprovals) SetForwarder(forwarder ApprovalForwarder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forwarder = forwarder
}

// RequestApproval implements ApprovalHandler
func (p *PendingApprovals) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	id, err := gonanoid.New()
	if err != nil {
		return ApprovalResponse{}, fmt.Errorf("failed to generate approval id: %w", err)
	}

	pending := &PendingApproval{
		ID:        id,
		Request:   req,
		CreatedAt: time.Now(),
		decision:  make(chan ApprovalResponse, 1),
	}
	if deadline, ok := ctx.Deadline(); ok {
		pending.ExpiresAt = deadline
	}

	p.mu.Lock()
	p.pending[id] = pending
	forwarder := p.forwarder
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if forwarder != nil {
		if err := forwarder.ForwardApproval(ctx, *pending); err != nil {
			log.Warn().Err(err).Str("approval_id", id).Msg("Failed to forward approval request")
		}
	}

	select {
	case response := <-pending.decision:
		return response, nil
	case <-ctx.Done():
		return ApprovalResponse{Approved: false, Reason: "timeout"}, ctx.Err()
	}
}

// Resolve records the decision for a pending approval
func (p *PendingApprovals) Resolve(id string, approved bool, actor string) error {
	p.mu.Lock()
	pending, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("approval not found: %s", id)
	}

	reason := "denied"
	if approved {
		reason = "approved"
	}
	if actor != "" {
		reason += " by " + actor
	}

	pending.decision <- ApprovalResponse{Approved: approved, Reason: reason}

	log.Info().
		Str("approval_id", id).
		Str("tool", pending.Request.ToolName).
		Bool("approved", approved).
		Str("actor", actor).
		Msg("Approval resolved")

	return nil
}

// List returns the pending approvals, oldest first
func (p *PendingApprovals) List() []PendingApproval {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PendingApproval, 0, len(p.pending))
	for _, pending := range p.pending {
		out = append(out, *pending)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out
}
