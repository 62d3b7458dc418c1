package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kartikay/folio/pkg/runtime"
)

// Callback runs when a scheduled task owned by sess fires
type Callback func(ctx context.Context, sess *Session, task runtime.Task) error

// ManagerConfig configures a Manager
type ManagerConfig struct {
	// Runner drives the model. Without one, sessions only record messages.
	Runner *Runner

	// OnMessage observes every message appended to any session
	OnMessage func(sessionID string, msg AgentMessage)
}

// Manager owns sessions and routes fired tasks to their callbacks
type Manager struct {
	runner    *Runner
	scheduler TaskScheduler
	onMessage func(sessionID string, msg AgentMessage)
	sessions  map[string]*Session
	callbacks map[string]Callback
	mu        sync.RWMutex
}

// NewManager creates a manager with the executeTask callback registered
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		runner:    cfg.Runner,
		onMessage: cfg.OnMessage,
		sessions:  make(map[string]*Session),
		callbacks: make(map[string]Callback),
	}

	m.RegisterCallback(runtime.ExecuteTaskCallback, m.executeTask)

	return m
}

// SetScheduler binds the scheduler that sessions schedule through. It must
// be called before the first session is created.
func (m *Manager) SetScheduler(scheduler TaskScheduler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduler = scheduler
}

// RegisterCallback registers a named task callback
func (m *Manager) RegisterCallback(name string, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[name] = cb
}

// Session returns the session with id, creating it on first use
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		return sess
	}

	sess := NewSession(id, m.scheduler)
	sess.onMessage = m.onMessage
	m.sessions[id] = sess

	log.Debug().Str("agent_id", id).Msg("Session created")

	return sess
}

// SessionIDs returns the IDs of all live sessions, sorted
func (m *Manager) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasRunner reports whether a model is configured
func (m *Manager) HasRunner() bool {
	return m.runner != nil
}

// Chat sends a user prompt to a session and runs the model
func (m *Manager) Chat(ctx context.Context, sessionID string, prompt string) (AgentResult, error) {
	if m.runner == nil {
		return AgentResult{}, fmt.Errorf("no model provider configured")
	}
	return m.runner.Run(ctx, m.Session(sessionID), prompt)
}

// Dispatch runs the callback of a fired task. It is the scheduler's
// dispatcher.
func (m *Manager) Dispatch(ctx context.Context, task runtime.Task) error {
	m.mu.RLock()
	cb, ok := m.callbacks[task.Callback]
	m.mu.RUnlock()

	if !ok {
		log.Warn().
			Str("taskId", task.ID).
			Str("callback", task.Callback).
			Msg("Unknown task callback")
		return fmt.Errorf("unknown callback: %s", task.Callback)
	}

	return cb(ctx, m.Session(task.AgentID), task)
}

// executeTask posts the task description as a user turn and, with a model
// configured, lets the model act on it.
func (m *Manager) executeTask(ctx context.Context, sess *Session, task runtime.Task) error {
	prompt := fmt.Sprintf("Running scheduled task: %s", task.Payload)

	if m.runner == nil {
		sess.Append(AgentMessage{Role: RoleUser, Content: prompt})
		return nil
	}

	_, err := m.runner.Run(ctx, sess, prompt)
	return err
}
