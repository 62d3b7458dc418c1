package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kartikay/folio/internal/tracing"
	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/schedule"
)

// Service manages scheduled tasks for all agents
type Service struct {
	tasks   map[string]*runtime.Task
	timers  map[string]*time.Timer
	entries map[string]cron.EntryID
	scheds  map[string]cron.Schedule
	running map[string]bool
	cron    *cron.Cron
	options Options
	mu      sync.RWMutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if opts.Dispatch == nil {
		return nil, fmt.Errorf("dispatch callback is required")
	}
	if opts.OnEvent == nil {
		opts.OnEvent = func(Event) {}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		tasks:   make(map[string]*runtime.Task),
		timers:  make(map[string]*time.Timer),
		entries: make(map[string]cron.EntryID),
		scheds:  make(map[string]cron.Schedule),
		running: make(map[string]bool),
		cron:    cron.New(cron.WithLocation(opts.Location)),
		options: opts,
		ctx:     ctx,
		cancel:  cancel,
	}

	return s, nil
}

// Start loads persisted tasks and arms them
func (s *Service) Start(ctx context.Context) error {
	tasks, err := s.options.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServiceStopped
	}
	if s.started {
		return nil
	}

	for i := range tasks {
		task := tasks[i]
		s.tasks[task.ID] = &task
		if err := s.armLocked(&task); err != nil {
			log.Warn().Str("taskId", task.ID).Err(err).Msg("Failed to arm persisted task")
		}
	}

	s.cron.Start()
	s.started = true

	log.Info().Int("taskCount", len(s.tasks)).Msg("Scheduler started")

	return nil
}

// Schedule creates a task for agentID that calls callback with payload
func (s *Service) Schedule(ctx context.Context, agentID string, when schedule.When, callback string, payload string) (*runtime.Task, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	if callback == "" {
		return nil, fmt.Errorf("callback is required")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task id: %w", err)
	}

	now := time.Now()
	task := &runtime.Task{
		ID:        id,
		AgentID:   agentID,
		Callback:  callback,
		Payload:   payload,
		CreatedAt: now,
	}

	sched, err := resolve(when, task, now, s.options.Location)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrServiceStopped
	}

	if err := s.options.Store.Put(ctx, *task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	s.tasks[task.ID] = task
	if sched != nil {
		s.scheds[task.ID] = sched
	}
	if err := s.armLocked(task); err != nil {
		delete(s.tasks, task.ID)
		delete(s.scheds, task.ID)
		_ = s.options.Store.Delete(ctx, task.ID)
		return nil, err
	}

	log.Info().
		Str("taskId", task.ID).
		Str("agent_id", agentID).
		Str("type", string(task.Type)).
		Time("time", task.Time).
		Msg("Task scheduled")

	s.options.OnEvent(Event{
		Action:    EventActionAdded,
		TaskID:    task.ID,
		AgentID:   agentID,
		Callback:  callback,
		NextRunAt: timePtr(task.Time),
	})

	out := *task
	return &out, nil
}

// List returns the tasks of agentID ordered by next run time. An empty
// agentID returns every task.
func (s *Service) List(agentID string) []runtime.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]runtime.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if agentID != "" && task.AgentID != agentID {
			continue
		}
		tasks = append(tasks, *task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Time.Equal(tasks[j].Time) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].Time.Before(tasks[j].Time)
	})

	return tasks
}

// Get returns a task by ID
func (s *Service) Get(id string) (runtime.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return runtime.Task{}, false
	}
	return *task, true
}

// Cancel removes a task owned by agentID. It returns false when no such
// task exists. An empty agentID matches any owner.
func (s *Service) Cancel(ctx context.Context, agentID string, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false, ErrServiceStopped
	}

	task, exists := s.tasks[id]
	if !exists || (agentID != "" && task.AgentID != agentID) {
		return false, nil
	}

	if err := s.options.Store.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}

	s.disarmLocked(id)
	delete(s.tasks, id)

	log.Info().Str("taskId", id).Str("agent_id", task.AgentID).Msg("Task canceled")

	s.options.OnEvent(Event{
		Action:  EventActionDeleted,
		TaskID:  id,
		AgentID: task.AgentID,
	})

	return true, nil
}

// Trigger runs a task immediately, outside its schedule
func (s *Service) Trigger(id string) error {
	s.mu.RLock()
	_, exists := s.tasks[id]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", runtime.ErrTaskNotFound, id)
	}

	go s.fire(id)

	return nil
}

// Stop halts all timers and cron entries. Tasks remain in the store.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.cancel()

	for id := range s.tasks {
		s.disarmLocked(id)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	if err := s.options.Store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close task store")
		return err
	}

	log.Info().Msg("Scheduler stopped")

	return nil
}

// armLocked starts the timer or cron entry for a task (must hold lock)
func (s *Service) armLocked(task *runtime.Task) error {
	id := task.ID

	if task.Recurring() {
		sched, ok := s.scheds[id]
		if !ok {
			parsed, err := ParseCron(task.Cron)
			if err != nil {
				return err
			}
			sched = parsed
			s.scheds[id] = sched
			task.Time = sched.Next(time.Now().In(s.options.Location))
		}

		entryID := s.cron.Schedule(sched, cron.FuncJob(func() {
			s.fire(id)
		}))
		s.entries[id] = entryID

		log.Debug().Str("taskId", id).Str("cron", task.Cron).Time("nextRun", task.Time).Msg("Task armed")
		return nil
	}

	delay := time.Until(task.Time)
	// Past due, run now
	if delay < 0 {
		delay = 0
	}

	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id)
	})

	log.Debug().Str("taskId", id).Dur("delay", delay).Msg("Task armed")
	return nil
}

// disarmLocked stops a task's timer or cron entry (must hold lock)
func (s *Service) disarmLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	delete(s.scheds, id)
}

// fire dispatches a due task and then retires or re-arms it
func (s *Service) fire(id string) {
	s.mu.Lock()
	task, exists := s.tasks[id]
	if !exists || s.stopped {
		s.mu.Unlock()
		log.Debug().Str("taskId", id).Msg("Task no longer exists, skipping execution")
		return
	}
	if s.running[id] {
		s.mu.Unlock()
		log.Debug().Str("taskId", id).Msg("Task already running, skipping execution")
		return
	}
	s.running[id] = true
	snapshot := *task
	ctx := s.ctx
	s.mu.Unlock()

	runCtx, span := tracing.StartSpan(tracing.NewTaskRunContext(ctx, snapshot.AgentID, id), "folio/scheduler", "task.fire",
		attribute.String("task.id", id),
		attribute.String("task.type", string(snapshot.Type)),
		attribute.String("task.callback", snapshot.Callback),
	)
	logger := tracing.Logger(runCtx, log.Logger)

	logger.Info().Str("callback", snapshot.Callback).Msg("Executing task")

	start := time.Now()
	err := s.options.Dispatch(runCtx, snapshot)
	durationMs := time.Since(start).Milliseconds()
	tracing.EndSpan(span, err)

	evt := Event{
		Action:     EventActionFinished,
		TaskID:     id,
		AgentID:    snapshot.AgentID,
		Callback:   snapshot.Callback,
		Status:     "ok",
		DurationMs: int64Ptr(durationMs),
	}
	if err != nil {
		evt.Status = "error"
		evt.Error = err.Error()
		logger.Error().Err(err).Msg("Task execution failed")
	} else {
		logger.Info().Int64("durationMs", durationMs).Msg("Task execution completed")
	}

	s.mu.Lock()
	delete(s.running, id)

	current, stillExists := s.tasks[id]
	deleted := false
	if stillExists {
		if current.Recurring() {
			if sched, ok := s.scheds[id]; ok {
				current.Time = sched.Next(time.Now().In(s.options.Location))
				evt.NextRunAt = timePtr(current.Time)
			}
			if perr := s.options.Store.Put(ctx, *current); perr != nil {
				log.Error().Err(perr).Str("taskId", id).Msg("Failed to persist task state")
			}
		} else {
			s.disarmLocked(id)
			delete(s.tasks, id)
			if perr := s.options.Store.Delete(ctx, id); perr != nil {
				log.Error().Err(perr).Str("taskId", id).Msg("Failed to delete finished task")
			}
			deleted = true
		}
	}
	s.mu.Unlock()

	s.options.OnEvent(evt)
	if deleted {
		s.options.OnEvent(Event{
			Action:  EventActionDeleted,
			TaskID:  id,
			AgentID: snapshot.AgentID,
		})
	}
}
