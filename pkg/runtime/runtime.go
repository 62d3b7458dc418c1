// Package runtime defines the contract between tools and the agent that
// hosts them: identity plus durable task scheduling.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/kartikay/folio/pkg/schedule"
)

// ErrTaskNotFound is returned when a task ID is unknown to the agent
var ErrTaskNotFound = errors.New("task not found")

// ExecuteTaskCallback is the agent callback that runs a scheduled task
const ExecuteTaskCallback = "executeTask"

// Agent is the handle a tool receives for the conversation it runs in
type Agent interface {
	// ID returns the agent (conversation) identifier
	ID() string

	// Schedule registers callback to run with payload at the time described by when
	Schedule(ctx context.Context, when schedule.When, callback string, payload string) (*Task, error)

	// GetSchedules returns the agent's pending tasks
	GetSchedules(ctx context.Context) ([]Task, error)

	// CancelSchedule removes a task; it reports false when the ID is unknown
	CancelSchedule(ctx context.Context, id string) (bool, error)
}

// Task is a scheduled task as stored by the runtime
type Task struct {
	ID             string        `json:"id"`
	AgentID        string        `json:"agentId"`
	Callback       string        `json:"callback"`
	Payload        string        `json:"payload"`
	Type           schedule.Kind `json:"type"`
	Time           time.Time     `json:"time"`
	DelayInSeconds int64         `json:"delayInSeconds,omitempty"`
	Cron           string        `json:"cron,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Recurring reports whether the task stays scheduled after it runs
func (t Task) Recurring() bool {
	return t.Type == schedule.KindCron
}
