package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/schedule"
)

// Standard 5-field cron expressions plus descriptors such as @daily
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return sched, nil
}

// resolver fills in the timing fields of a task from a schedule request
type resolver struct {
	now   time.Time
	loc   *time.Location
	task  *runtime.Task
	sched cron.Schedule
	err   error
}

func (r *resolver) VisitNoSchedule(schedule.NoSchedule) {
	r.err = ErrNoSchedule
}

func (r *resolver) VisitScheduled(w schedule.Scheduled) {
	if w.Date.IsZero() {
		r.err = fmt.Errorf("scheduled task requires a date")
		return
	}
	r.task.Type = schedule.KindScheduled
	r.task.Time = w.In(r.loc)
}

func (r *resolver) VisitDelayed(w schedule.Delayed) {
	if w.DelayInSeconds < 0 {
		r.err = fmt.Errorf("delay must not be negative: %d", w.DelayInSeconds)
		return
	}
	if w.DelayInSeconds > schedule.MaxDelayInSeconds {
		r.err = fmt.Errorf("delay exceeds maximum of %d seconds: %d", schedule.MaxDelayInSeconds, w.DelayInSeconds)
		return
	}
	r.task.Type = schedule.KindDelayed
	r.task.DelayInSeconds = w.DelayInSeconds
	r.task.Time = r.now.Add(w.Delay())
}

func (r *resolver) VisitCron(w schedule.Cron) {
	sched, err := ParseCron(w.Expr)
	if err != nil {
		r.err = err
		return
	}
	next := sched.Next(r.now.In(r.loc))
	if next.IsZero() {
		r.err = fmt.Errorf("invalid cron expression %q: never fires", w.Expr)
		return
	}
	r.sched = sched
	r.task.Type = schedule.KindCron
	r.task.Cron = w.Expr
	r.task.Time = next
}

// resolve computes type and next run time for when. For cron requests the
// parsed schedule is returned as well.
func resolve(when schedule.When, task *runtime.Task, now time.Time, loc *time.Location) (cron.Schedule, error) {
	if when == nil {
		return nil, fmt.Errorf("schedule is required")
	}
	r := &resolver{now: now, loc: loc, task: task}
	when.Accept(r)
	return r.sched, r.err
}
