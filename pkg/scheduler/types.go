package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/kartikay/folio/pkg/runtime"
)

var (
	// ErrNoSchedule is returned for a no-schedule request; there is nothing to arm
	ErrNoSchedule = errors.New("no schedule given")

	// ErrServiceStopped is returned by operations on a stopped service
	ErrServiceStopped = errors.New("service is stopped")
)

// Dispatcher runs a task when it becomes due
type Dispatcher func(ctx context.Context, task runtime.Task) error

// Store persists tasks across restarts
type Store interface {
	Load(ctx context.Context) ([]runtime.Task, error)
	Put(ctx context.Context, task runtime.Task) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// EventAction represents the type of event
type EventAction string

const (
	EventActionAdded    EventAction = "added"
	EventActionFinished EventAction = "finished"
	EventActionDeleted  EventAction = "deleted"
)

// Event represents a scheduler event
type Event struct {
	Action     EventAction `json:"action"`
	TaskID     string      `json:"taskId"`
	AgentID    string      `json:"agentId,omitempty"`
	Callback   string      `json:"callback,omitempty"`
	Status     string      `json:"status,omitempty"` // "ok" or "error"
	Error      string      `json:"error,omitempty"`
	DurationMs *int64      `json:"durationMs,omitempty"`
	NextRunAt  *time.Time  `json:"nextRunAt,omitempty"`
}

// Options configures the scheduler service
type Options struct {
	Store    Store          // Task persistence
	Dispatch Dispatcher     // Called when a task is due
	OnEvent  func(Event)    // Optional event callback
	Location *time.Location // Time zone for cron expressions (default: Local)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}
