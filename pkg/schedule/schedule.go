package schedule

import (
	"math"
	"strconv"
	"time"
)

// MaxDelayInSeconds is the longest delay a time.Duration can hold
const MaxDelayInSeconds = math.MaxInt64 / int64(time.Second)

// Kind is the discriminant of a schedule request
type Kind string

const (
	KindNoSchedule Kind = "no-schedule"
	KindScheduled  Kind = "scheduled"
	KindDelayed    Kind = "delayed"
	KindCron       Kind = "cron"
)

// Kinds lists every schedule kind in declaration order
var Kinds = []Kind{KindScheduled, KindDelayed, KindCron, KindNoSchedule}

// When is a schedule request. The set of implementations is closed.
type When interface {
	Kind() Kind
	Accept(v Visitor)
	sealed()
}

// Visitor handles every schedule variant
type Visitor interface {
	VisitNoSchedule(NoSchedule)
	VisitScheduled(Scheduled)
	VisitDelayed(Delayed)
	VisitCron(Cron)
}

// NoSchedule means the model could not derive a time from the request
type NoSchedule struct{}

// Scheduled runs once at a fixed date
type Scheduled struct {
	Date time.Time

	// Floating dates carried no UTC offset. The scheduler reads their wall
	// clock in its own time zone.
	Floating bool
}

// In returns the date, reading a floating date's wall clock in loc
func (s Scheduled) In(loc *time.Location) time.Time {
	if !s.Floating || loc == nil {
		return s.Date
	}
	d := s.Date
	return time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), loc)
}

// Delayed runs once after a number of seconds
type Delayed struct {
	DelayInSeconds int64
}

// Cron runs on a cron expression
type Cron struct {
	Expr string
}

func (NoSchedule) Kind() Kind { return KindNoSchedule }
func (Scheduled) Kind() Kind  { return KindScheduled }
func (Delayed) Kind() Kind    { return KindDelayed }
func (Cron) Kind() Kind       { return KindCron }

func (w NoSchedule) Accept(v Visitor) { v.VisitNoSchedule(w) }
func (w Scheduled) Accept(v Visitor)  { v.VisitScheduled(w) }
func (w Delayed) Accept(v Visitor)    { v.VisitDelayed(w) }
func (w Cron) Accept(v Visitor)       { v.VisitCron(w) }

func (NoSchedule) sealed() {}
func (Scheduled) sealed()  {}
func (Delayed) sealed()    {}
func (Cron) sealed()       {}

// Delay returns the delay as a duration
func (d Delayed) Delay() time.Duration {
	return time.Duration(d.DelayInSeconds) * time.Second
}

// describer renders the value each variant resolves to
type describer struct {
	value string
}

func (d *describer) VisitNoSchedule(NoSchedule) { d.value = "" }
func (d *describer) VisitScheduled(w Scheduled) {
	if w.Floating {
		d.value = w.Date.Format("2006-01-02T15:04:05")
		return
	}
	d.value = w.Date.Format(time.RFC3339)
}
func (d *describer) VisitDelayed(w Delayed)     { d.value = strconv.FormatInt(w.DelayInSeconds, 10) }
func (d *describer) VisitCron(w Cron)           { d.value = w.Expr }

// Describe returns the resolved value of a schedule request: the date for
// scheduled, the seconds for delayed, the expression for cron and an empty
// string for no-schedule.
func Describe(w When) string {
	d := &describer{}
	w.Accept(d)
	return d.value
}
