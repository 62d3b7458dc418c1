package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/schedule"
)

// TaskScheduler is the part of the scheduler service a session uses
type TaskScheduler interface {
	Schedule(ctx context.Context, agentID string, when schedule.When, callback string, payload string) (*runtime.Task, error)
	List(agentID string) []runtime.Task
	Cancel(ctx context.Context, agentID string, id string) (bool, error)
}

// Session is one conversation. It is the runtime.Agent handed to tools.
type Session struct {
	id        string
	scheduler TaskScheduler
	onMessage func(sessionID string, msg AgentMessage)

	messages []AgentMessage
	mu       sync.RWMutex

	// runMu serializes model runs on this session
	runMu sync.Mutex
}

var _ runtime.Agent = (*Session)(nil)

// NewSession creates a session bound to scheduler. A nil scheduler makes
// every scheduling call fail.
func NewSession(id string, scheduler TaskScheduler) *Session {
	return &Session{
		id:        id,
		scheduler: scheduler,
	}
}

// ID implements runtime.Agent
func (s *Session) ID() string {
	return s.id
}

// Schedule implements runtime.Agent
func (s *Session) Schedule(ctx context.Context, when schedule.When, callback string, payload string) (*runtime.Task, error) {
	if s.scheduler == nil {
		return nil, fmt.Errorf("scheduler is not available")
	}
	return s.scheduler.Schedule(ctx, s.id, when, callback, payload)
}

// GetSchedules implements runtime.Agent
func (s *Session) GetSchedules(ctx context.Context) ([]runtime.Task, error) {
	if s.scheduler == nil {
		return nil, fmt.Errorf("scheduler is not available")
	}
	return s.scheduler.List(s.id), nil
}

// CancelSchedule implements runtime.Agent
func (s *Session) CancelSchedule(ctx context.Context, id string) (bool, error) {
	if s.scheduler == nil {
		return false, fmt.Errorf("scheduler is not available")
	}
	return s.scheduler.Cancel(ctx, s.id, id)
}

// Append adds a message to the history and returns it with ID and time set
func (s *Session) Append(msg AgentMessage) AgentMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	onMessage := s.onMessage
	s.mu.Unlock()

	if onMessage != nil {
		onMessage(s.id, msg)
	}

	return msg
}

// History returns a copy of the conversation
func (s *Session) History() []AgentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AgentMessage, len(s.messages))
	copy(out, s.messages)
	return out
}
